package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/snappy"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/zap"
)

// StartRemoteWrite pushes the collector's registry to the configured
// remote-write endpoint every FlushInterval until ctx is done.
func (c *Collector) StartRemoteWrite(ctx context.Context, logger *zap.Logger) {
	if c.config.RemoteWriteURL == "" {
		return
	}
	interval := c.config.FlushInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Push(ctx); err != nil {
				logger.Warn("Remote write failed", zap.Error(err))
			}
		}
	}
}

// Push sends one batch of the current samples.
func (c *Collector) Push(ctx context.Context) error {
	mfs, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	series := metricsToSeries(mfs, time.Now())
	if len(series) == 0 {
		return nil
	}

	batchSize := c.config.BatchSize
	if batchSize <= 0 {
		batchSize = len(series)
	}
	for i := 0; i < len(series); i += batchSize {
		end := i + batchSize
		if end > len(series) {
			end = len(series)
		}
		if err := c.sendBatch(ctx, series[i:end]); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
	}
	return nil
}

func metricsToSeries(mfs []*dto.MetricFamily, now time.Time) []prompb.TimeSeries {
	var series []prompb.TimeSeries
	ts := now.UnixNano() / int64(time.Millisecond)

	for _, mf := range mfs {
		for _, m := range mf.Metric {
			labels := make([]prompb.Label, 0, len(m.Label)+1)
			labels = append(labels, prompb.Label{Name: "__name__", Value: mf.GetName()})
			for _, l := range m.Label {
				labels = append(labels, prompb.Label{Name: l.GetName(), Value: l.GetValue()})
			}

			var value float64
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				value = m.Counter.GetValue()
			case dto.MetricType_GAUGE:
				value = m.Gauge.GetValue()
			case dto.MetricType_HISTOGRAM:
				for _, bucket := range m.Histogram.Bucket {
					bucketLabels := append([]prompb.Label{}, labels...)
					bucketLabels[0].Value = mf.GetName() + "_bucket"
					bucketLabels = append(bucketLabels, prompb.Label{
						Name:  "le",
						Value: fmt.Sprintf("%g", bucket.GetUpperBound()),
					})
					series = append(series, prompb.TimeSeries{
						Labels:  bucketLabels,
						Samples: []prompb.Sample{{Value: float64(bucket.GetCumulativeCount()), Timestamp: ts}},
					})
				}
				continue
			default:
				continue
			}

			series = append(series, prompb.TimeSeries{
				Labels:  labels,
				Samples: []prompb.Sample{{Value: value, Timestamp: ts}},
			})
		}
	}

	return series
}

func (c *Collector) sendBatch(ctx context.Context, series []prompb.TimeSeries) error {
	req := &prompb.WriteRequest{Timeseries: series}
	data, err := req.Marshal()
	if err != nil {
		return err
	}
	compressed := snappy.Encode(nil, data)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.RemoteWriteURL+"/api/v1/push", bytes.NewReader(compressed))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if c.config.TenantHeader != "" && c.config.TenantID != "" {
		httpReq.Header.Set(c.config.TenantHeader, c.config.TenantID)
	}
	if c.config.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("remote write failed: %s", resp.Status)
	}
	return nil
}
