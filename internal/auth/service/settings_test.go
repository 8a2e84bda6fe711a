package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestSettingsService(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := &SettingsService{Store: st, Now: func() time.Time { return now }}

	t.Run("seeded switches are all on", func(t *testing.T) {
		sw, err := svc.SecuritySwitches(ctx)
		require.NoError(t, err)
		require.Equal(t, httpx.AllSwitchesOn, sw)
	})

	t.Run("put rejects", func(t *testing.T) {
		tests := []struct {
			name       string
			collection string
			data       string
		}{
			{"array", "storefront", `[1,2]`},
			{"null", "storefront", `null`},
			{"malformed", "storefront", `{"a":`},
			{"bad collection", "../etc", `{}`},
			{"unknown switch", domain.SecurityCollection, `{"csrf_enabled":false,"debug":true}`},
			{"wrong switch type", domain.SecurityCollection, `{"csrf_enabled":"no"}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.Put(ctx, tt.collection, json.RawMessage(tt.data))
				require.ErrorIs(t, err, ErrInvalidArgument)
			})
		}
	})

	t.Run("put security invalidates the cache", func(t *testing.T) {
		rec, err := svc.Put(ctx, domain.SecurityCollection, json.RawMessage(`{"csrf_enabled":false}`))
		require.NoError(t, err)
		require.JSONEq(t, `{"csrf_enabled":false}`, string(rec.Data))

		sw, err := svc.SecuritySwitches(ctx)
		require.NoError(t, err)
		require.Equal(t, httpx.Switches{APIKeys: true, CSRF: false, RateLimit: true}, sw)
	})

	t.Run("writes behind the service wait for the ttl", func(t *testing.T) {
		require.NoError(t, st.Settings().PutSettings(ctx, domain.Settings{
			Collection: domain.SecurityCollection,
			Data:       json.RawMessage(`{"rate_limit_enabled":false}`),
		}))

		sw, err := svc.SecuritySwitches(ctx)
		require.NoError(t, err)
		require.False(t, sw.CSRF, "still cached")

		now = now.Add(DefaultSwitchCacheTTL)
		sw, err = svc.SecuritySwitches(ctx)
		require.NoError(t, err)
		require.Equal(t, httpx.Switches{APIKeys: true, CSRF: true, RateLimit: false}, sw)
	})

	t.Run("get", func(t *testing.T) {
		_, err := svc.Put(ctx, "storefront", json.RawMessage(`{"currency":"AUD"}`))
		require.NoError(t, err)

		rec, err := svc.Get(ctx, "storefront")
		require.NoError(t, err)
		require.JSONEq(t, `{"currency":"AUD"}`, string(rec.Data))

		_, err = svc.Get(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

// heldSettingsStore pauses the first security read after it has loaded the
// record, until release is closed.
type heldSettingsStore struct {
	store.Store
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (h *heldSettingsStore) Settings() store.Settings {
	return heldSettings{Settings: h.Store.Settings(), h: h}
}

type heldSettings struct {
	store.Settings
	h *heldSettingsStore
}

func (s heldSettings) GetSettings(ctx context.Context, collection string) (domain.Settings, error) {
	rec, err := s.Settings.GetSettings(ctx, collection)
	if collection == domain.SecurityCollection {
		s.h.once.Do(func() {
			close(s.h.loaded)
			<-s.h.release
		})
	}
	return rec, err
}

func TestSecuritySwitchesPutDuringRead(t *testing.T) {
	ctx := context.Background()
	held := &heldSettingsStore{
		Store:   newTestStore(t),
		loaded:  make(chan struct{}),
		release: make(chan struct{}),
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := &SettingsService{Store: held, Now: func() time.Time { return now }}

	stale := make(chan httpx.Switches, 1)
	go func() {
		sw, _ := svc.SecuritySwitches(ctx)
		stale <- sw
	}()

	// The read above holds the seeded record while the admin turns CSRF off.
	<-held.loaded
	_, err := svc.Put(ctx, domain.SecurityCollection, json.RawMessage(`{"csrf_enabled":false}`))
	require.NoError(t, err)

	close(held.release)
	require.Equal(t, httpx.AllSwitchesOn, <-stale)

	// The clock has not moved, so only a skipped cache write explains this.
	sw, err := svc.SecuritySwitches(ctx)
	require.NoError(t, err)
	require.False(t, sw.CSRF)
}
