package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DashboardStats summarises the current period for the dashboards. The
// NotStarted count is derived: active employees with no report row. That is
// the only place the virtual "not started" state surfaces.
type DashboardStats struct {
	PeriodID       int64          `json:"period_id"`
	Deadline       time.Time      `json:"deadline"`
	Counts         map[Status]int `json:"counts"`
	NotStarted     int            `json:"not_started"`
	TotalEmployees int            `json:"total_employees"`
}

// StatsCache wraps Redis based caching with versioned keys so invalidation
// is a version bump, not a scan.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache instantiates the cache helper.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

const statsVersionKey = "reports:stats:version"

func (c *StatsCache) key(ctx context.Context, periodID int64) (string, error) {
	if c == nil || c.client == nil {
		return fmt.Sprintf("reports:stats:%d", periodID), nil
	}
	ver, err := c.client.Get(ctx, statsVersionKey).Int64()
	if err == redis.Nil {
		ver = 1
		if err := c.client.Set(ctx, statsVersionKey, ver, 0).Err(); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("reports:stats:%d:%d", periodID, ver), nil
}

// Bump invalidates all cached stats by incrementing the version.
func (c *StatsCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, statsVersionKey).Err()
}

func (c *StatsCache) get(ctx context.Context, key string, dest *DashboardStats) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, nil
	}
	return true, nil
}

func (c *StatsCache) set(ctx context.Context, key string, stats DashboardStats) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Dashboard computes cached per-period report statistics. Concurrent cache
// misses for the same period collapse into one rebuild via singleflight.
type Dashboard struct {
	repo    Repository
	periods periodSource
	cache   *StatsCache
	group   singleflight.Group
}

// NewDashboard constructs the dashboard reader.
func NewDashboard(repo Repository, periodSvc periodSource, cache *StatsCache) *Dashboard {
	return &Dashboard{repo: repo, periods: periodSvc, cache: cache}
}

// Stats returns the dashboard summary for the current period.
func (d *Dashboard) Stats(ctx context.Context) (DashboardStats, error) {
	period, err := d.periods.Current(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	key, err := d.cache.key(ctx, period.ID)
	if err != nil {
		return DashboardStats{}, err
	}
	var cached DashboardStats
	hit, err := d.cache.get(ctx, key, &cached)
	if err != nil {
		return DashboardStats{}, err
	}
	if hit {
		return cached, nil
	}
	result, err, _ := d.group.Do(key, func() (any, error) {
		counts, err := d.repo.StatusCounts(ctx, period.ID)
		if err != nil {
			return nil, err
		}
		total, err := d.repo.CountActiveEmployees(ctx)
		if err != nil {
			return nil, err
		}
		started := 0
		for _, n := range counts {
			started += n
		}
		stats := DashboardStats{
			PeriodID:       period.ID,
			Deadline:       period.Deadline,
			Counts:         counts,
			NotStarted:     max(total-started, 0),
			TotalEmployees: total,
		}
		if err := d.cache.set(ctx, key, stats); err != nil {
			return nil, err
		}
		return stats, nil
	})
	if err != nil {
		return DashboardStats{}, err
	}
	return result.(DashboardStats), nil
}
