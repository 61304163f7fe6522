package invoice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCachedSettings_TTL(t *testing.T) {
	var calls int32
	source := SettingsSourceFunc(func(context.Context) (Settings, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return Settings{{Key: SettingCompanyName, Value: "first"}}, nil
		}
		return Settings{{Key: SettingCompanyName, Value: "second"}}, nil
	})

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewCachedSettings(source, time.Minute)
	cache.Now = func() time.Time { return now }
	ctx := context.Background()

	settings, err := cache.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.Value(SettingCompanyName, "") != "first" {
		t.Fatalf("unexpected settings %+v", settings)
	}

	now = now.Add(30 * time.Second)
	settings, _ = cache.Load(ctx)
	if settings.Value(SettingCompanyName, "") != "first" || atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected cached settings")
	}

	now = now.Add(time.Minute)
	settings, _ = cache.Load(ctx)
	if settings.Value(SettingCompanyName, "") != "second" {
		t.Fatalf("expected refreshed settings, got %+v", settings)
	}

	cache.Invalidate()
	if _, err := cache.Load(ctx); err != nil {
		t.Fatalf("load after invalidate: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 fetches, got %d", calls)
	}
}

func TestCachedSettings_ErrorsNotCached(t *testing.T) {
	var calls int32
	source := SettingsSourceFunc(func(context.Context) (Settings, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("down")
		}
		return Settings{}, nil
	})
	cache := NewCachedSettings(source, time.Minute)

	if _, err := cache.Load(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := cache.Load(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
}

func TestCachedSettings_SharesConcurrentFetch(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	source := SettingsSourceFunc(func(context.Context) (Settings, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return Settings{}, nil
	})
	cache := NewCachedSettings(source, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.Load(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got < 1 || got > 5 {
		t.Fatalf("unexpected fetch count %d", got)
	}
	if _, err := cache.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := atomic.LoadInt32(&calls)
	_, _ = cache.Load(context.Background())
	if atomic.LoadInt32(&calls) != before {
		t.Fatalf("expected cached load")
	}
}

func TestCachedSettings_CanceledCallerDoesNotFailSharedFetch(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	source := SettingsSourceFunc(func(ctx context.Context) (Settings, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
		}
		return Settings{{Key: SettingCompanyName, Value: "Acme"}}, nil
	})
	cache := NewCachedSettings(source, time.Minute)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Load(firstCtx)
		firstErr <- err
	}()

	<-started
	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled caller to see context.Canceled, got %v", err)
	}

	type result struct {
		settings Settings
		err      error
	}
	second := make(chan result, 1)
	go func() {
		settings, err := cache.Load(context.Background())
		second <- result{settings: settings, err: err}
	}()
	close(release)

	got := <-second
	if got.err != nil {
		t.Fatalf("live caller: %v", got.err)
	}
	if got.settings.Value(SettingCompanyName, "") != "Acme" {
		t.Fatalf("expected configured settings, got %+v", got.settings)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected one shared fetch, got %d", n)
	}
}

func TestCachedSettings_FetchTimeout(t *testing.T) {
	source := SettingsSourceFunc(func(ctx context.Context) (Settings, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	cache := NewCachedSettings(source, time.Minute)
	cache.FetchTimeout = 10 * time.Millisecond

	if _, err := cache.Load(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
