package store

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/headline-goat/funnel-goat/internal/metrics"
)

// Adapter reads and writes JSON slots across the session and durable tiers.
// A nil tier behaves like storage disabled by the host: every call fails with
// ErrUnavailable.
type Adapter struct {
	session KV
	durable KV
}

func NewAdapter(session, durable KV) *Adapter {
	return &Adapter{session: session, durable: durable}
}

func (a *Adapter) kv(tier Tier) (KV, error) {
	var kv KV
	switch tier {
	case TierSession:
		kv = a.session
	case TierDurable:
		kv = a.durable
	default:
		return nil, fmt.Errorf("unknown tier %q: %w", tier, ErrUnavailable)
	}
	if kv == nil {
		return nil, fmt.Errorf("%s tier: %w", tier, ErrUnavailable)
	}
	return kv, nil
}

// Load decodes the slot into v. It reports false with a nil error when the
// slot is empty, and wraps ErrCorrupt when the content does not decode.
func (a *Adapter) Load(ctx context.Context, tier Tier, key string, v any) (bool, error) {
	kv, err := a.kv(tier)
	if err != nil {
		metrics.StorageErrors.WithLabelValues(string(tier), "read").Inc()
		return false, err
	}

	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		metrics.StorageErrors.WithLabelValues(string(tier), "read").Inc()
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		metrics.StorageErrors.WithLabelValues(string(tier), "decode").Inc()
		return false, fmt.Errorf("decode %s: %w: %v", key, ErrCorrupt, err)
	}
	return true, nil
}

func (a *Adapter) Save(ctx context.Context, tier Tier, key string, v any) error {
	kv, raw, err := a.prepare(tier, key, v)
	if err != nil {
		return err
	}
	if err := kv.Set(ctx, key, raw); err != nil {
		metrics.StorageErrors.WithLabelValues(string(tier), "write").Inc()
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// SaveIfAbsent writes v only when the slot is empty and reports whether it wrote.
func (a *Adapter) SaveIfAbsent(ctx context.Context, tier Tier, key string, v any) (bool, error) {
	kv, raw, err := a.prepare(tier, key, v)
	if err != nil {
		return false, err
	}
	wrote, err := kv.SetIfAbsent(ctx, key, raw)
	if err != nil {
		metrics.StorageErrors.WithLabelValues(string(tier), "write").Inc()
		return false, fmt.Errorf("write %s: %w", key, err)
	}
	return wrote, nil
}

func (a *Adapter) prepare(tier Tier, key string, v any) (KV, string, error) {
	kv, err := a.kv(tier)
	if err != nil {
		metrics.StorageErrors.WithLabelValues(string(tier), "write").Inc()
		return nil, "", err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", key, err)
	}
	return kv, string(data), nil
}
