package notify

import (
	"context"
	"log/slog"

	"frontdesk-queue-system/shared/logx"
)

// CustomerNotice tells a visitor their ticket was resolved.
type CustomerNotice struct {
	TicketID          string
	TicketNumber      string
	CustomerName      string
	Phone             string
	Email             string
	ResolutionNotes   string
	FeedbackRequested bool
}

// Sink delivers customer notices. A nil error means the attempt was made;
// it is not a delivery receipt.
type Sink interface {
	NotifyCustomer(ctx context.Context, notice CustomerNotice) error
}

// LogSink only writes the notice to the service log.
type LogSink struct {
	Logger logx.Logger
}

func (s LogSink) NotifyCustomer(ctx context.Context, notice CustomerNotice) error {
	s.Logger.Info(ctx, "customer_notice_sent", "resolution notice logged",
		slog.String("ticket_id", notice.TicketID),
		slog.String("ticket_number", notice.TicketNumber),
		slog.String("customer_name", notice.CustomerName),
		slog.String("phone", notice.Phone),
		slog.String("resolution", notice.ResolutionNotes),
		slog.Bool("feedback_requested", notice.FeedbackRequested),
	)
	return nil
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, notice CustomerNotice) error

func (f SinkFunc) NotifyCustomer(ctx context.Context, notice CustomerNotice) error {
	return f(ctx, notice)
}
