// pkg/intake/intake.go
package intake

import (
	"context"

	"github.com/rs/zerolog"

	pipeerrors "github.com/lucid-vigil/aegis/pkg/errors"
	"github.com/lucid-vigil/aegis/pkg/events"
)

// Service is the intake/normalizer stage. It converts raw source payloads
// into ErrorEvents, maintains the bounded history and pattern table, and
// publishes error_detected on the bus. Nothing downstream ever sees a raw
// payload shape.
type Service struct {
	normalizers map[Source]Normalizer
	validator   *PayloadValidator
	history     *History
	patterns    *PatternStore
	bus         *events.EventBus
	logger      zerolog.Logger
}

// Options tunes the intake stage.
type Options struct {
	MaxHistoryPerKey int
	MaxPayloadBytes  int
	RatePerMinute    int
	RateBurst        int
}

// NewService creates the intake service. The bus may be nil in tests.
func NewService(logger zerolog.Logger, bus *events.EventBus, opts Options) *Service {
	return &Service{
		normalizers: DefaultNormalizers(),
		validator:   NewPayloadValidator(opts.MaxPayloadBytes, opts.RatePerMinute, opts.RateBurst),
		history:     NewHistory(opts.MaxHistoryPerKey),
		patterns:    NewPatternStore(),
		bus:         bus,
		logger:      logger.With().Str("component", "intake").Logger(),
	}
}

// Process validates and normalizes one raw payload, records it, and
// publishes error_detected. A payload that fails validation or
// normalization is logged and dropped; Process never fails in a way that
// would abort processing of other payloads. Returns the stored event, or
// nil when the payload was dropped.
func (s *Service) Process(ctx context.Context, source Source, payload map[string]interface{}) *ErrorEvent {
	if err := s.validator.Validate(source, payload); err != nil {
		pipeerrors.NewNormalizationError(string(source), err, map[string]interface{}{
			"stage": "validation",
		}).Log(s.logger)
		return nil
	}

	normalize, exists := s.normalizers[source]
	if !exists {
		pipeerrors.NewNormalizationError(string(source), nil, map[string]interface{}{
			"stage": "dispatch",
		}).Log(s.logger)
		return nil
	}

	event, err := normalize(payload)
	if err != nil {
		pipeerrors.NewNormalizationError(string(source), err, map[string]interface{}{
			"stage": "normalize",
		}).Log(s.logger)
		return nil
	}

	s.history.Store(event)
	pattern := s.patterns.Record(event)

	s.logger.Debug().
		Str("event_id", event.ID).
		Str("source", string(event.Source)).
		Str("severity", string(event.Severity)).
		Str("signature", pattern.Signature).
		Int64("frequency", pattern.Frequency).
		Msg("Error event normalized")

	if s.bus != nil {
		if err := s.bus.Publish(ctx, events.Event{
			Type:     events.EventErrorDetected,
			Source:   "intake",
			Severity: string(event.Severity),
			Payload:  event,
		}); err != nil {
			// Publish failure must not abort intake; the event is already stored.
			s.logger.Error().Err(err).Str("event_id", event.ID).Msg("Failed to publish error_detected")
		}
	}

	return event
}

// History exposes the bounded event history.
func (s *Service) History() *History { return s.history }

// Patterns exposes the pattern table, shared with the learning engine for
// outcome feedback.
func (s *Service) Patterns() *PatternStore { return s.patterns }
