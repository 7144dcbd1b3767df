package webhook

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/commsware/channel-whatsapp/internal/accounts"
	"github.com/commsware/channel-whatsapp/internal/observability/metrics"
	"github.com/commsware/channel-whatsapp/internal/whatsapp"
	"github.com/commsware/channel-whatsapp/pkg/logging"
)

// AccountSource resolves which accounts a webhook entry belongs to.
type AccountSource interface {
	FindByBusinessID(ctx context.Context, businessID string) ([]accounts.Account, error)
}

// EventSink consumes routed events. Implementations own persistence and
// deduplication; the router hands every resolvable event over exactly once
// per delivery.
type EventSink interface {
	HandleStatus(ctx context.Context, candidates []accounts.Account, event whatsapp.InboundEvent) error
	HandleMessage(ctx context.Context, candidates []accounts.Account, event whatsapp.InboundEvent) error
}

// Result records the outcome of one event in a delivery. A delivery never
// aborts midway; later events still run after an earlier failure.
type Result struct {
	Event   whatsapp.InboundEvent
	Err     error
	Dropped bool
}

// Router resolves accounts for parsed events and feeds them to the sink.
type Router struct {
	source  AccountSource
	sink    EventSink
	logger  *logging.Logger
	metrics *metrics.ChannelMetrics
	tracer  trace.Tracer
}

func NewRouter(source AccountSource, sink EventSink, logger *logging.Logger, m *metrics.ChannelMetrics) *Router {
	if logger == nil {
		logger = logging.Default()
	}
	if sink == nil {
		sink = &LoggingSink{Logger: logger}
	}
	return &Router{
		source:  source,
		sink:    sink,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("comms.internal.webhook.router"),
	}
}

// Route processes parsed events in order and returns one Result per event.
// Events whose business id matches no live account are dropped with a
// warning; sink errors are recorded without stopping the delivery.
func (r *Router) Route(ctx context.Context, events []whatsapp.InboundEvent) []Result {
	ctx, span := r.tracer.Start(ctx, "webhook.route")
	defer span.End()

	// Account lookups are cached per delivery: one webhook batch often
	// repeats the same business id across entries.
	cache := make(map[string][]accounts.Account)
	results := make([]Result, 0, len(events))

	for _, event := range events {
		results = append(results, r.routeOne(ctx, cache, event))
	}
	return results
}

func (r *Router) routeOne(ctx context.Context, cache map[string][]accounts.Account, event whatsapp.InboundEvent) Result {
	candidates, ok := cache[event.BusinessID]
	if !ok {
		found, err := r.source.FindByBusinessID(ctx, event.BusinessID)
		if err != nil {
			r.metrics.ObserveInbound(string(event.Kind), "error")
			return Result{Event: event, Err: err}
		}
		candidates = found
		cache[event.BusinessID] = candidates
	}

	if len(candidates) == 0 {
		r.logger.Warn("webhook event for unknown business, dropping",
			"business_id", event.BusinessID,
			"phone_number_id", event.PhoneNumberID,
			"kind", event.Kind,
		)
		r.metrics.ObserveInbound(string(event.Kind), "dropped")
		return Result{Event: event, Dropped: true}
	}

	var err error
	switch event.Kind {
	case whatsapp.EventStatus:
		err = r.sink.HandleStatus(ctx, candidates, event)
	case whatsapp.EventMessage:
		err = r.sink.HandleMessage(ctx, candidates, event)
	}
	if err != nil {
		r.metrics.ObserveInbound(string(event.Kind), "error")
		r.logger.Error("event sink failed",
			"error", err,
			"business_id", event.BusinessID,
			"kind", event.Kind,
		)
		return Result{Event: event, Err: err}
	}

	r.metrics.ObserveInbound(string(event.Kind), "processed")
	return Result{Event: event}
}

// LoggingSink is the default sink: it records events in the log and nothing
// else. Deployments embed this service with their own sink.
type LoggingSink struct {
	Logger *logging.Logger
}

func (s *LoggingSink) HandleStatus(_ context.Context, candidates []accounts.Account, event whatsapp.InboundEvent) error {
	s.Logger.Info("status update received",
		"message_id", event.Status.ID,
		"status", event.Status.Status,
		"recipient", event.Status.RecipientID,
		"candidates", len(candidates),
	)
	return nil
}

func (s *LoggingSink) HandleMessage(_ context.Context, candidates []accounts.Account, event whatsapp.InboundEvent) error {
	s.Logger.Info("inbound message received",
		"message_id", event.Message.ID,
		"from", event.Message.From,
		"type", event.Message.Type,
		"candidates", len(candidates),
	)
	return nil
}
