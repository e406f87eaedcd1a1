package stats

import (
	"github.com/leozw/farm-guardian/internal/db"
	"github.com/leozw/farm-guardian/internal/metrics"
)

// Aggregator owns the running Stat snapshot. It applies what it is told and
// enforces no bounds; range policies belong to the caller.
type Aggregator struct {
	repo    *db.Repository
	metrics *metrics.Collector
}

func NewAggregator(repo *db.Repository, metrics *metrics.Collector) *Aggregator {
	a := &Aggregator{repo: repo, metrics: metrics}
	a.metrics.RecordStat(repo.GetStat())
	return a
}

func (a *Aggregator) Current() db.Stat {
	return a.repo.GetStat()
}

func (a *Aggregator) IncrementActiveFarms(delta int64) db.Stat {
	return a.adjust(func(s *db.Stat) { s.ActiveFarms += delta })
}

func (a *Aggregator) AddPointsClaimed(points int64) db.Stat {
	return a.adjust(func(s *db.Stat) { s.PointsClaimed += points })
}

func (a *Aggregator) AddWatchHours(hours float64) db.Stat {
	return a.adjust(func(s *db.Stat) { s.WatchHours += hours })
}

// Merge shallow-merges the patch over the current snapshot. The active farm
// count is never part of a patch.
func (a *Aggregator) Merge(patch db.StatPatch) db.Stat {
	stat := a.repo.UpdateStat(patch)
	a.metrics.RecordStat(stat)
	return stat
}

func (a *Aggregator) adjust(fn func(*db.Stat)) db.Stat {
	stat := a.repo.AdjustStat(fn)
	a.metrics.RecordStat(stat)
	return stat
}
