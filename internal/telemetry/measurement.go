package telemetry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/headline-goat/funnel-goat/internal/metrics"
)

// MeasurementConfig configures the HTTP collector behind sink A.
type MeasurementConfig struct {
	Endpoint      string
	MeasurementID string
	APISecret     string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// MeasurementClient implements Gtag by posting Measurement Protocol style
// hits to a collect endpoint. Calls return as soon as the hit is encoded; the
// request itself runs on its own goroutine and is never retried. A circuit
// breaker stops hammering an endpoint that keeps failing.
type MeasurementClient struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
	cb       *gobreaker.CircuitBreaker[struct{}]
	log      zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// ErrClientClosed is returned by Call after Close.
var ErrClientClosed = errors.New("measurement client closed")

type measurementHit struct {
	ClientID string             `json:"client_id"`
	Events   []measurementEvent `json:"events"`
}

type measurementEvent struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

func NewMeasurementClient(cfg MeasurementConfig, log zerolog.Logger) (*MeasurementClient, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid measurement endpoint %q", cfg.Endpoint)
	}

	q := u.Query()
	if cfg.MeasurementID != "" {
		q.Set("measurement_id", cfg.MeasurementID)
	}
	if cfg.APISecret != "" {
		q.Set("api_secret", cfg.APISecret)
	}
	u.RawQuery = q.Encode()

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	c := &MeasurementClient{
		endpoint: u.String(),
		timeout:  timeout,
		http:     client,
		log:      log,
	}

	const cbName = "measurement"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)
	c.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("measurement circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return c, nil
}

// Call handles gtag commands. "config" has nothing to send; "event" posts one
// hit. The client id is taken from params["client_id"] when present.
func (c *MeasurementClient) Call(command, name string, params map[string]any) error {
	switch command {
	case GtagCommandConfig:
		return nil
	case GtagCommandEvent:
	default:
		return fmt.Errorf("unsupported gtag command %q", command)
	}

	params = maps.Clone(params)
	clientID, _ := params["client_id"].(string)
	delete(params, "client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	body, err := json.Marshal(measurementHit{
		ClientID: clientID,
		Events:   []measurementEvent{{Name: name, Params: params}},
	})
	if err != nil {
		return fmt.Errorf("encode hit: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		_, err := c.cb.Execute(func() (struct{}, error) {
			return struct{}{}, c.post(body)
		})
		if err != nil {
			metrics.SinkErrors.WithLabelValues("gtag").Inc()
			c.log.Debug().Err(err).Str("event", name).Msg("measurement hit failed")
		}
	}()
	return nil
}

func (c *MeasurementClient) post(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("collect endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Close rejects further hits and waits for in-flight ones.
func (c *MeasurementClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wg.Wait()
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
