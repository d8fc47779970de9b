package attribution

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/headline-goat/funnel-goat/internal/metrics"
	"github.com/headline-goat/funnel-goat/internal/store"
)

// Coordinator persists campaign tags on every navigation: the durable first
// touch is written once, the session last touch and current slots are
// overwritten by every tagged navigation. Untagged navigations change nothing.
//
// Storage failures are logged and swallowed; reads treat them, and corrupt
// content, as no attribution.
type Coordinator struct {
	storage *store.Adapter
	log     zerolog.Logger
}

func NewCoordinator(storage *store.Adapter, log zerolog.Logger) *Coordinator {
	return &Coordinator{storage: storage, log: log}
}

// Capture extracts the tags of address and persists them. It returns the
// captured tags, or nil when the address carried none.
func (c *Coordinator) Capture(ctx context.Context, address string) *Params {
	p := ExtractString(address)
	if p == nil {
		return nil
	}

	if err := c.storage.Save(ctx, store.TierSession, store.KeyLastTouchUTM, p); err != nil {
		c.log.Warn().Err(err).Str("slot", store.KeyLastTouchUTM).Msg("failed to persist last touch")
	} else {
		metrics.UTMCaptures.WithLabelValues("last").Inc()
	}

	wrote, err := c.storage.SaveIfAbsent(ctx, store.TierDurable, store.KeyFirstTouchUTM, p)
	switch {
	case err != nil:
		c.log.Warn().Err(err).Str("slot", store.KeyFirstTouchUTM).Msg("failed to persist first touch")
	case wrote:
		metrics.UTMCaptures.WithLabelValues("first").Inc()
	}

	if err := c.storage.Save(ctx, store.TierSession, store.KeyCurrentUTM, p); err != nil {
		c.log.Warn().Err(err).Str("slot", store.KeyCurrentUTM).Msg("failed to persist current touch")
	}

	return p
}

// FirstTouch returns the tags of the visitor's first tagged navigation.
func (c *Coordinator) FirstTouch(ctx context.Context) *Params {
	return c.read(ctx, store.TierDurable, store.KeyFirstTouchUTM)
}

// LastTouch returns the tags of the session's most recent tagged navigation.
func (c *Coordinator) LastTouch(ctx context.Context) *Params {
	return c.read(ctx, store.TierSession, store.KeyLastTouchUTM)
}

// Current returns the session mirror of the latest captured tags.
func (c *Coordinator) Current(ctx context.Context) *Params {
	return c.read(ctx, store.TierSession, store.KeyCurrentUTM)
}

func (c *Coordinator) read(ctx context.Context, tier store.Tier, key string) *Params {
	var p Params
	ok, err := c.storage.Load(ctx, tier, key, &p)
	if err != nil {
		c.log.Debug().Err(err).Str("slot", key).Msg("unreadable attribution slot")
		return nil
	}
	// "null" and "{}" decode fine but carry nothing
	if !ok || p.Empty() {
		return nil
	}
	return &p
}
