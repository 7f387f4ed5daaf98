package chains

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dileep-u-k/hospital-agent/internal/cache"
	"github.com/dileep-u-k/hospital-agent/internal/tools"
	"github.com/dileep-u-k/hospital-agent/internal/version"
)

const (
	waitCachePrefix = "waitcache:"
	// DefaultWaitCacheTTL keeps wait times "current" while sparing the source
	// from repeated lookups inside one conversation.
	DefaultWaitCacheTTL = 30 * time.Second
)

type waitTimeResponse struct {
	HospitalName    string `json:"hospital_name"`
	CurrentWaitTime int    `json:"current_wait_time"`
}

// WaitTimes reads current wait times from the wait-time service, with a short-lived
// cache in front of it.
type WaitTimes struct {
	client *Client
	cache  cache.Cache
	ttl    time.Duration
}

var _ tools.WaitTimeSource = (*WaitTimes)(nil)

// NewWaitTimes creates a wait-time source. A nil cache disables caching.
func NewWaitTimes(client *Client, c cache.Cache, ttl time.Duration) *WaitTimes {
	if c == nil {
		c = cache.Noop{}
	}
	if ttl <= 0 {
		ttl = DefaultWaitCacheTTL
	}
	return &WaitTimes{client: client, cache: c, ttl: ttl}
}

// Current returns the wait time in minutes at one hospital. An unknown hospital
// yields tools.ErrHospitalNotFound.
func (w *WaitTimes) Current(ctx context.Context, hospital string) (int, error) {
	key := waitCachePrefix + version.Hash(strings.ToLower(hospital))
	if cached, ok := w.cache.Get(ctx, key); ok {
		var resp waitTimeResponse
		if json.Unmarshal([]byte(cached), &resp) == nil {
			return resp.CurrentWaitTime, nil
		}
	}

	var resp waitTimeResponse
	err := w.client.getJSON(ctx, "/wait-times/"+url.PathEscape(hospital), &resp)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("%w: %q", tools.ErrHospitalNotFound, hospital)
	}
	if err != nil {
		return 0, fmt.Errorf("wait-time service: %w", err)
	}

	if raw, err := json.Marshal(resp); err == nil {
		w.cache.Set(ctx, key, string(raw), w.ttl)
	}
	return resp.CurrentWaitTime, nil
}

// All returns the current wait time at every hospital.
func (w *WaitTimes) All(ctx context.Context) (map[string]int, error) {
	key := waitCachePrefix + "all"
	if cached, ok := w.cache.Get(ctx, key); ok {
		var all map[string]int
		if json.Unmarshal([]byte(cached), &all) == nil {
			return all, nil
		}
	}

	var all map[string]int
	if err := w.client.getJSON(ctx, "/wait-times", &all); err != nil {
		return nil, fmt.Errorf("wait-time service: %w", err)
	}
	if raw, err := json.Marshal(all); err == nil {
		w.cache.Set(ctx, key, string(raw), w.ttl)
	}
	return all, nil
}
