package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shabbat-mode/domain/model"
	"shabbat-mode/domain/repository"
	"shabbat-mode/infrastructure/logger"

	"github.com/redis/go-redis/v9"
)

// TimeDataCache is a read-through redis cache in front of the time-data client.
// Cache failures are logged and fall through to the upstream.
type TimeDataCache struct {
	client   redis.UniversalClient
	upstream repository.ITimeData
	ttl      time.Duration
}

func NewTimeDataCache(client *redis.Client, upstream repository.ITimeData, ttl time.Duration) repository.ITimeData {
	if client == nil {
		return upstream
	}
	return &TimeDataCache{client: client, upstream: upstream, ttl: ttl}
}

func timeDataKey(locationID string, week time.Time) string {
	return fmt.Sprintf("zmanim:%s:%s", locationID, week.Format("2006-01-02"))
}

func (c *TimeDataCache) ShabbatTimes(ctx context.Context, locationID string, week time.Time) (*model.ShabbatTimes, error) {
	key := timeDataKey(locationID, week)
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached model.ShabbatTimes
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			return &cached, nil
		}
		logger.GetLogger().WithField("key", key).Warn("Discarding undecodable cached time data")
	case !errors.Is(err, redis.Nil):
		logger.GetLogger().WithFields(map[string]interface{}{"key": key, "error": err}).Warn("Time data cache read failed")
	}

	times, err := c.upstream.ShabbatTimes(ctx, locationID, week)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(times); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			logger.GetLogger().WithFields(map[string]interface{}{"key": key, "error": err}).Warn("Time data cache write failed")
		}
	}
	return times, nil
}
