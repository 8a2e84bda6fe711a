package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

const DefaultSwitchCacheTTL = 5 * time.Second

var collectionName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// SettingsService fronts the settings collections. It also serves the
// security switches to the access policy, cached for SwitchCacheTTL.
type SettingsService struct {
	Store          store.Store
	SwitchCacheTTL time.Duration
	Now            func() time.Time

	mu        sync.Mutex
	switches  httpx.Switches
	fetchedAt time.Time
	cached    bool
	gen       uint64 // bumped by every security Put
}

func (s *SettingsService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func validCollection(name string) error {
	if !collectionName.MatchString(name) {
		return fmt.Errorf("%w: invalid collection name", ErrInvalidArgument)
	}
	return nil
}

// Get returns the record for collection or store.ErrNotFound.
func (s *SettingsService) Get(ctx context.Context, collection string) (domain.Settings, error) {
	if err := validCollection(collection); err != nil {
		return domain.Settings{}, err
	}
	return s.Store.Settings().GetSettings(ctx, collection)
}

// Put replaces the record for collection. data must be a JSON object; the
// security collection must also decode strictly into the switch set.
func (s *SettingsService) Put(ctx context.Context, collection string, data json.RawMessage) (domain.Settings, error) {
	if err := validCollection(collection); err != nil {
		return domain.Settings{}, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return domain.Settings{}, fmt.Errorf("%w: settings must be a JSON object", ErrInvalidArgument)
	}

	if collection == domain.SecurityCollection {
		if _, err := parseSwitches(data, true); err != nil {
			return domain.Settings{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}

	rec := domain.Settings{Collection: collection, Data: data}
	if err := s.Store.Settings().PutSettings(ctx, rec); err != nil {
		return domain.Settings{}, fmt.Errorf("store settings: %w", err)
	}

	if collection == domain.SecurityCollection {
		s.mu.Lock()
		s.cached = false
		s.gen++
		s.mu.Unlock()
	}

	return s.Store.Settings().GetSettings(ctx, collection)
}

// SecuritySwitches implements httpx.SwitchSource. Keys missing from the
// stored record default to on.
func (s *SettingsService) SecuritySwitches(ctx context.Context) (httpx.Switches, error) {
	ttl := s.SwitchCacheTTL
	if ttl <= 0 {
		ttl = DefaultSwitchCacheTTL
	}

	s.mu.Lock()
	if s.cached && s.now().Sub(s.fetchedAt) < ttl {
		sw := s.switches
		s.mu.Unlock()
		return sw, nil
	}
	gen := s.gen
	s.mu.Unlock()

	sw := httpx.AllSwitchesOn
	rec, err := s.Store.Settings().GetSettings(ctx, domain.SecurityCollection)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return httpx.AllSwitchesOn, fmt.Errorf("load security settings: %w", err)
	default:
		sw, err = parseSwitches(rec.Data, false)
		if err != nil {
			return httpx.AllSwitchesOn, err
		}
	}

	// A Put that landed while we were reading may have written newer
	// switches than the ones we hold; leave the cache empty for the next call.
	s.mu.Lock()
	if s.gen == gen {
		s.switches, s.fetchedAt, s.cached = sw, s.now(), true
	}
	s.mu.Unlock()
	return sw, nil
}

func parseSwitches(data []byte, strict bool) (httpx.Switches, error) {
	sw := httpx.AllSwitchesOn
	dec := json.NewDecoder(bytes.NewReader(data))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&sw); err != nil {
		return httpx.AllSwitchesOn, fmt.Errorf("decode security switches: %w", err)
	}
	return sw, nil
}
