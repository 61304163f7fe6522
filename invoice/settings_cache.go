package invoice

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultSettingsTTL is how long cached settings stay fresh.
const DefaultSettingsTTL = 30 * time.Second

// DefaultSettingsFetchTimeout bounds a shared upstream fetch.
const DefaultSettingsFetchTimeout = 30 * time.Second

// CachedSettings wraps a SettingsSource with a TTL cache. Concurrent loads
// of a stale entry share a single upstream fetch. The shared fetch is
// detached from any one caller, so a caller that gives up does not fail
// the others. Failed fetches are not cached.
type CachedSettings struct {
	Source       SettingsSource
	TTL          time.Duration
	FetchTimeout time.Duration
	Now          func() time.Time

	mu        sync.Mutex
	settings  Settings
	fetchedAt time.Time
	loaded    bool
	group     singleflight.Group
}

// NewCachedSettings wraps source with the given TTL.
func NewCachedSettings(source SettingsSource, ttl time.Duration) *CachedSettings {
	return &CachedSettings{Source: source, TTL: ttl, Now: time.Now}
}

// Load returns cached settings or fetches a fresh copy.
func (c *CachedSettings) Load(ctx context.Context) (Settings, error) {
	if c == nil || c.Source == nil {
		return nil, NewError(KindSettingsFetch, "settings source not configured", nil)
	}

	c.mu.Lock()
	if c.loaded && c.now().Sub(c.fetchedAt) < c.ttl() {
		settings := c.settings
		c.mu.Unlock()
		return settings, nil
	}
	c.mu.Unlock()

	fetch := c.group.DoChan("settings", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout())
		defer cancel()

		settings, err := c.Source.Load(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.settings = settings
		c.fetchedAt = c.now()
		c.loaded = true
		c.mu.Unlock()
		return settings, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-fetch:
		if result.Err != nil {
			return nil, result.Err
		}
		settings, _ := result.Val.(Settings)
		return settings, nil
	}
}

// Invalidate drops the cached copy so the next Load revalidates.
func (c *CachedSettings) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.loaded = false
	c.settings = nil
	c.mu.Unlock()
}

func (c *CachedSettings) ttl() time.Duration {
	if c.TTL <= 0 {
		return DefaultSettingsTTL
	}
	return c.TTL
}

func (c *CachedSettings) fetchTimeout() time.Duration {
	if c.FetchTimeout <= 0 {
		return DefaultSettingsFetchTimeout
	}
	return c.FetchTimeout
}

func (c *CachedSettings) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
