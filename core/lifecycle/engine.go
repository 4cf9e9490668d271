// Package lifecycle runs visitor tickets through submission, routing,
// handling and resolution, recording notifications and an activity trail
// as it goes.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"frontdesk-queue-system/core/models"
	"frontdesk-queue-system/core/notify"
	"frontdesk-queue-system/core/routing"
	"frontdesk-queue-system/core/store"
	"frontdesk-queue-system/shared/events"
	"frontdesk-queue-system/shared/logx"
	"frontdesk-queue-system/shared/metricsx"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Publisher receives a domain event for every ticket transition.
type Publisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

type PublisherFunc func(ctx context.Context, env events.Envelope) error

func (f PublisherFunc) Publish(ctx context.Context, env events.Envelope) error { return f(ctx, env) }

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, events.Envelope) error { return nil }

type Option func(*Engine)

func WithSink(sink notify.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithLogger(logger logx.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the calendar used for "today" in statistics.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithReceptionist sets the actor that receives desk notifications and is
// credited with store-level audit entries.
func WithReceptionist(actor models.Actor) Option {
	return func(e *Engine) {
		if actor.ID != "" {
			e.receptionist = actor
		}
	}
}

func WithSuggestionLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.suggestionLimit = limit
		}
	}
}

type Engine struct {
	store           store.Store
	sink            notify.Sink
	publisher       Publisher
	logger          logx.Logger
	now             func() time.Time
	location        *time.Location
	receptionist    models.Actor
	suggestionLimit int
	validate        *validator.Validate
	tracer          trace.Tracer
}

// New builds an engine over s. Ticket writes go through an audit decorator
// so each create and update is also logged as activity.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		publisher:       discardPublisher{},
		logger:          logx.Discard(),
		now:             func() time.Time { return time.Now().UTC() },
		location:        time.UTC,
		receptionist:    models.DefaultReceptionist,
		suggestionLimit: routing.DefaultSuggestLimit,
		validate:        newValidator(),
		tracer:          otel.Tracer("frontdesk-queue-system/core/lifecycle"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sink == nil {
		e.sink = notify.LogSink{Logger: e.logger}
	}
	e.store = store.WithAudit(s, e.receptionist)
	return e
}

func (e *Engine) Receptionist() models.Actor { return e.receptionist }

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "lifecycle."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (e *Engine) getTicket(ctx context.Context, id string) (models.Ticket, error) {
	t, err := e.store.Tickets().Get(ctx, id)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// staffActor resolves a staff id to an actor, falling back to a generic name
// for ids missing from the directory.
func (e *Engine) staffActor(ctx context.Context, staffID string) (models.Actor, error) {
	staff, err := e.store.Staff().Get(ctx, staffID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Actor{ID: staffID, Name: "Staff"}, nil
	}
	if err != nil {
		return models.Actor{}, fmt.Errorf("get staff: %w", err)
	}
	return models.Actor{ID: staff.ID, Name: staff.Name}, nil
}

func (e *Engine) notify(ctx context.Context, to models.Actor, title string, message string, t models.Ticket, priority models.Priority) error {
	_, err := e.store.Notifications().Create(ctx, models.Notification{
		Type:              models.NotificationTypeVisitor,
		Title:             title,
		Message:           message,
		RecipientID:       to.ID,
		RecipientName:     to.Name,
		RelatedEntityID:   t.ID,
		RelatedEntityType: models.EntityTypeVisitor,
		Priority:          priority,
	})
	if err != nil {
		return fmt.Errorf("create notification %q: %w", title, err)
	}
	metricsx.IncNotificationCreated(title)
	return nil
}

func (e *Engine) record(ctx context.Context, typ string, action string, description string, t models.Ticket, by models.Actor) error {
	_, err := e.store.Activity().Append(ctx, models.ActivityLogEntry{
		Type:            typ,
		Action:          action,
		Description:     description,
		EntityID:        t.ID,
		EntityType:      models.EntityTypeVisitor,
		PerformedBy:     by.ID,
		PerformedByName: by.Name,
	})
	if err != nil {
		return fmt.Errorf("append activity %s: %w", action, err)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, eventType string, t models.Ticket, fromStatus string, category string, by models.Actor) error {
	if eventType == "" {
		return nil
	}
	payload := events.TicketPayload{
		TicketNumber: t.TicketNumber,
		FromStatus:   fromStatus,
		Status:       t.Status,
		Priority:     string(t.Priority),
		Category:     category,
		HostStaffID:  t.HostStaffID,
		PerformedBy:  by.ID,
		CheckInTime:  t.CheckInTime,
	}
	if t.CheckOutTime != nil {
		payload.WaitSeconds = t.CheckOutTime.Sub(t.CheckInTime).Seconds()
	}
	if t.SatisfactionRating != nil {
		payload.Satisfaction = *t.SatisfactionRating
	}
	env, err := events.NewTicketEnvelope(t.ID, eventType, e.now(), payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	if err := e.publisher.Publish(ctx, env); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	metricsx.IncTicketTransition(eventType)
	return nil
}

func (e *Engine) logFailure(ctx context.Context, event string, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("error_code", errorCode(err)), slog.String("error", err.Error()))
	e.logger.Warn(ctx, event, "ticket operation failed", attrs...)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrValidation):
		return "INVALID_ARGUMENT"
	case errors.Is(err, ErrInvalidTransition):
		return "FAILED_PRECONDITION"
	case errors.Is(err, store.ErrConflict):
		return "ABORTED"
	default:
		return "INTERNAL_ERROR"
	}
}
