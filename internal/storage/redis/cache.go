package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChannelStatusTTL bounds how long the last known channel status is cached.
const ChannelStatusTTL = 10 * time.Minute

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) *Client {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{
			Addr: redisURL,
		}
	}

	return &Client{redis.NewClient(opt)}
}

func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.Set(ctx, key, data, expiration).Err()
}

func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), dest)
}

func channelStatusKey(channelName string) string {
	return fmt.Sprintf("farm:channel:status:%s", channelName)
}

func (c *Client) CacheChannelStatus(ctx context.Context, channelName string, status interface{}) error {
	return c.SetJSON(ctx, channelStatusKey(channelName), status, ChannelStatusTTL)
}

func (c *Client) GetCachedChannelStatus(ctx context.Context, channelName string, dest interface{}) error {
	return c.GetJSON(ctx, channelStatusKey(channelName), dest)
}
