package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/headline-goat/funnel-goat/internal/funnel"
	"github.com/headline-goat/funnel-goat/internal/logging"
	"github.com/headline-goat/funnel-goat/internal/pipeline"
	"github.com/headline-goat/funnel-goat/internal/store"
	"github.com/headline-goat/funnel-goat/internal/telemetry"
)

// withStore opens the database, executes the function, and handles cleanup.
func withStore(fn func(*store.SQLiteStore) error) error {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}

// tokenFilePath returns the token file, kept alongside the database.
func tokenFilePath() string {
	return filepath.Join(filepath.Dir(cfg.DBPath), ".fg-token")
}

func loadRoutes() (*funnel.RouteTable, error) {
	if cfg.RoutesFile == "" {
		return funnel.DefaultRouteTable(), nil
	}
	routes, err := funnel.LoadRoutes(cfg.RoutesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	return routes, nil
}

// buildDispatcher wires the configured sinks. Sink A is present when a collect
// endpoint is set; sink B when a container ID is set. The returned cleanup
// waits for in-flight hits and closes the pub/sub.
func buildDispatcher(ctx context.Context, log zerolog.Logger) (*telemetry.Dispatcher, func(), error) {
	var (
		tag      telemetry.Gtag
		layer    telemetry.DataLayer
		cleanups []func()
	)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.SinkAEndpoint != "" {
		client, err := telemetry.NewMeasurementClient(telemetry.MeasurementConfig{
			Endpoint:      cfg.SinkAEndpoint,
			MeasurementID: cfg.SinkAID,
			APISecret:     cfg.SinkASecret,
		}, log.With().Str("component", "measurement").Logger())
		if err != nil {
			return nil, nil, err
		}
		tag = client
		cleanups = append(cleanups, client.Close)
	}

	if cfg.SinkBContainerID != "" {
		wmLog := logging.NewWatermillAdapter(log.With().Str("component", "pubsub").Logger())
		ps := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, wmLog)
		cleanups = append(cleanups, func() {
			if err := ps.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close data layer pub/sub")
			}
		})

		pl := telemetry.NewPubSubDataLayer(ps, cfg.SinkBContainerID)
		records, err := ps.Subscribe(ctx, pl.Topic())
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("subscribe data layer: %w", err)
		}
		go consumeDataLayer(records, log.With().Str("component", "datalayer").Str("topic", pl.Topic()).Logger())
		layer = pl
	}

	d := telemetry.NewDispatcher(cfg.Telemetry(), log.With().Str("component", "dispatcher").Logger(),
		telemetry.NewGtagSink(tag, cfg.SinkAID),
		telemetry.NewDataLayerSink(layer),
	)
	return d, cleanup, nil
}

// consumeDataLayer is the tag container side of sink B: it logs every record
// it receives and acknowledges it.
func consumeDataLayer(records <-chan *message.Message, log zerolog.Logger) {
	for msg := range records {
		var record map[string]any
		if err := json.Unmarshal(msg.Payload, &record); err != nil {
			log.Warn().Err(err).Str("uuid", msg.UUID).Msg("malformed data layer record")
			msg.Ack()
			continue
		}
		log.Info().Fields(record).Msg("data layer record")
		msg.Ack()
	}
}

// inspect builds a pipeline over stored state for read-only commands. It has
// no sinks, so nothing it does leaves the process.
func inspect(s *store.SQLiteStore, visitorID, sessionID string) *pipeline.Telemetry {
	var session, durable store.KV
	if sessionID != "" {
		session = s.Session(sessionID)
	}
	if visitorID != "" {
		durable = s.Durable(visitorID)
	}
	return pipeline.New(telemetry.NewDispatcher(telemetry.Config{}, zerolog.Nop()), store.NewAdapter(session, durable), pipeline.Options{
		Log: logging.With("cli"),
	})
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
