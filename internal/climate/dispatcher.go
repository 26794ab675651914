package climate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type contextKey string

// correlationIDKey carries the command correlation ID through a dispatch.
const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID attaches a correlation ID to the context. Every command
// gets one so upstream results and log lines can be tied back to the
// request that caused them.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext extracts the correlation ID, or "" if absent.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// Dispatcher routes commands to the appropriate source with at most one
// fallback hop. A command first targets the capability's preferred provider;
// if that attempt fails (provider unavailable or the call is rejected) the
// alternate is tried exactly once. There is no second retry and no queueing:
// a command that cannot be delivered now fails now.
type Dispatcher struct {
	agg    *Aggregator
	logger Logger
}

// NewDispatcher creates a dispatcher bound to one aggregator's sources.
func NewDispatcher(agg *Aggregator) *Dispatcher {
	return &Dispatcher{agg: agg, logger: noopLogger{}}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// SetTargetTemperature sets the thermostat setpoint.
func (d *Dispatcher) SetTargetTemperature(ctx context.Context, value float64) error {
	st := d.agg.CurrentState()
	if value < st.MinTemp || value > st.MaxTemp {
		return fmt.Errorf("%w: setpoint %.1f outside [%.1f, %.1f]",
			ErrCommandRejected, value, st.MinTemp, st.MaxTemp)
	}
	return d.dispatch(ctx, CapTemperatureWrite, Command{
		Op:          OpSetTemperature,
		Temperature: &value,
	})
}

// SetHVACMode sets the operating mode (heat, cool, off and so on).
func (d *Dispatcher) SetHVACMode(ctx context.Context, mode string) error {
	return d.dispatch(ctx, CapHVACMode, Command{Op: OpSetHVACMode, Mode: mode})
}

// SetFanMode sets the fan mode. Fan control has a single provider, so there
// is no fallback: with that provider down the command fails immediately.
func (d *Dispatcher) SetFanMode(ctx context.Context, mode string) error {
	return d.dispatch(ctx, CapFanMode, Command{Op: OpSetFanMode, Mode: mode})
}

// TurnOn powers the thermostat on.
func (d *Dispatcher) TurnOn(ctx context.Context) error {
	return d.dispatch(ctx, CapPower, Command{Op: OpTurnOn})
}

// TurnOff powers the thermostat off.
func (d *Dispatcher) TurnOff(ctx context.Context) error {
	return d.dispatch(ctx, CapPower, Command{Op: OpTurnOff})
}

// dispatch resolves the capability's providers and routes through the
// failover policy before touching a source: with nothing available the
// command fails without a wire attempt, and with only the alternate up
// the command goes straight there. When the preferred provider is
// active, a failed attempt (unavailable race or rejection) falls through
// to the alternate exactly once.
func (d *Dispatcher) dispatch(ctx context.Context, c Capability, cmd Command) error {
	rt, err := d.agg.router.Resolve(c)
	if err != nil {
		return err
	}

	if cmd.ID == "" {
		cmd.ID = uuid.New().String()
	}
	if CorrelationIDFromContext(ctx) == "" {
		ctx = WithCorrelationID(ctx, cmd.ID)
	}

	preferred := d.agg.handleFor(rt.preferred)
	var alternate *sourceHandle
	if rt.hasAlternate {
		alternate = d.agg.handleFor(rt.alternate)
	}

	choice := d.agg.policy.ActiveSource(
		preferred.available.Load(),
		alternate != nil && alternate.available.Load(),
	)

	switch choice {
	case ChoiceNone:
		d.logger.Warn("command rejected, no provider available",
			"pair", d.agg.name,
			"capability", c,
			"op", cmd.Op,
			"correlation_id", cmd.ID,
		)
		return fmt.Errorf("%w: %s", ErrAllSourcesUnavailable, c)

	case ChoiceAlternate:
		// Preferred is down, so the alternate gets the only attempt.
		altErr := alternate.issue(ctx, cmd)
		if altErr == nil {
			d.logger.Info("command delivered via fallback",
				"pair", d.agg.name,
				"capability", c,
				"op", cmd.Op,
				"source", alternate.kind,
				"correlation_id", cmd.ID,
			)
			return nil
		}
		d.logger.Error("command failed on fallback source",
			"pair", d.agg.name,
			"capability", c,
			"op", cmd.Op,
			"source", alternate.kind,
			"correlation_id", cmd.ID,
			"error", altErr,
		)
		if errors.Is(altErr, ErrSourceUnavailable) {
			// The alternate dropped between the policy check and the call.
			return fmt.Errorf("%w: %s", ErrAllSourcesUnavailable, c)
		}
		return altErr
	}

	// ChoicePreferred.
	firstErr := preferred.issue(ctx, cmd)
	if firstErr == nil {
		d.logger.Debug("command delivered",
			"pair", d.agg.name,
			"capability", c,
			"op", cmd.Op,
			"source", preferred.kind,
			"correlation_id", cmd.ID,
		)
		return nil
	}

	if alternate == nil {
		d.logger.Warn("command failed, no alternate provider",
			"pair", d.agg.name,
			"capability", c,
			"op", cmd.Op,
			"source", preferred.kind,
			"correlation_id", cmd.ID,
			"error", firstErr,
		)
		if errors.Is(firstErr, ErrSourceUnavailable) {
			return fmt.Errorf("%w: %s", ErrAllSourcesUnavailable, c)
		}
		return firstErr
	}

	d.logger.Warn("command failed on preferred source, trying alternate",
		"pair", d.agg.name,
		"capability", c,
		"op", cmd.Op,
		"source", preferred.kind,
		"correlation_id", cmd.ID,
		"error", firstErr,
	)

	secondErr := alternate.issue(ctx, cmd)
	if secondErr == nil {
		d.logger.Info("command delivered via fallback",
			"pair", d.agg.name,
			"capability", c,
			"op", cmd.Op,
			"source", alternate.kind,
			"correlation_id", cmd.ID,
		)
		return nil
	}

	d.logger.Error("command failed on both sources",
		"pair", d.agg.name,
		"capability", c,
		"op", cmd.Op,
		"correlation_id", cmd.ID,
		"preferred_error", firstErr,
		"alternate_error", secondErr,
	)

	if errors.Is(firstErr, ErrSourceUnavailable) && errors.Is(secondErr, ErrSourceUnavailable) {
		return fmt.Errorf("%w: %s", ErrAllSourcesUnavailable, c)
	}
	return secondErr
}
