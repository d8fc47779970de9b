package telemetry

// Gtag is sink A's call surface: gtag(command, name, params).
type Gtag interface {
	Call(command, name string, params map[string]any) error
}

// GtagFunc adapts a function to Gtag.
type GtagFunc func(command, name string, params map[string]any) error

func (f GtagFunc) Call(command, name string, params map[string]any) error {
	return f(command, name, params)
}

const (
	GtagCommandEvent  = "event"
	GtagCommandConfig = "config"
)

// GtagSink forwards events as gtag("event", name, params).
type GtagSink struct {
	tag    Gtag
	sendTo string
}

// NewGtagSink wraps tag; a nil tag makes the sink unavailable. A non-empty
// sendTo is forwarded as the send_to routing parameter.
func NewGtagSink(tag Gtag, sendTo string) *GtagSink {
	return &GtagSink{tag: tag, sendTo: sendTo}
}

func (s *GtagSink) Name() string { return "gtag" }

func (s *GtagSink) Available() bool { return s != nil && s.tag != nil }

func (s *GtagSink) Send(ev Event) error {
	params := ev.params()
	if s.sendTo != "" {
		params["send_to"] = s.sendTo
	}
	return s.tag.Call(GtagCommandEvent, ev.Name, params)
}
