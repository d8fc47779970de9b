// Package telemetry forwards named analytics events to the configured sinks.
//
// Delivery is best effort: a sink that is missing is skipped, a sink that fails
// or panics is logged in debug mode and otherwise ignored, and nothing is ever
// reported back to the caller of Dispatch.
package telemetry

import "maps"

const (
	CategoryConversion = "conversion"
	CategoryEngagement = "engagement"
)

// Well-known event names.
const (
	EventPageView          = "page_view"
	EventConversion        = "conversion"
	EventCTAClick          = "cta_click"
	EventCodeCopy          = "code_copy"
	EventHeroCTAClick      = "hero_cta_click"
	EventFunnelProgression = "funnel_progression"
)

// FieldEventCategory carries Event.Category to the sinks.
const FieldEventCategory = "event_category"

// Event is a named analytics event. Property values are strings, numbers or
// booleans; keys are up to the caller.
type Event struct {
	Name       string
	Category   string
	Properties map[string]any
}

// NewEvent builds an event that owns a copy of props.
func NewEvent(name, category string, props map[string]any) Event {
	return Event{Name: name, Category: category, Properties: maps.Clone(props)}
}

// params returns a fresh property map with event_category merged in.
func (e Event) params() map[string]any {
	out := make(map[string]any, len(e.Properties)+2)
	maps.Copy(out, e.Properties)
	if e.Category != "" {
		out[FieldEventCategory] = e.Category
	}
	return out
}

func PageViewEvent(path, title string) Event {
	return NewEvent(EventPageView, "", map[string]any{
		"page_path":  path,
		"page_title": title,
	})
}

// ConversionEvent reports a conversion in USD; a nil value is reported as 0.
func ConversionEvent(conversionID string, value *float64) Event {
	v := 0.0
	if value != nil {
		v = *value
	}
	return NewEvent(EventConversion, CategoryConversion, map[string]any{
		"conversion_id": conversionID,
		"value":         v,
		"currency":      "USD",
	})
}

func CTAClickEvent(elementID string) Event {
	return NewEvent(EventCTAClick, CategoryConversion, map[string]any{"elementId": elementID})
}

func CodeCopyEvent(snippetID string) Event {
	return NewEvent(EventCodeCopy, CategoryEngagement, map[string]any{"snippetId": snippetID})
}

func HeroCTAEvent(action string) Event {
	return NewEvent(EventHeroCTAClick, "", map[string]any{"action": action})
}
