package metricsx

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	kafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag by topic.",
		},
		[]string{"topic", "group"},
	)
	influxWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "influx_write_failures_total",
			Help: "Total InfluxDB write failures.",
		},
	)
	asynqQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asynq_queue_depth",
			Help: "Asynq queue depth by queue.",
		},
		[]string{"queue"},
	)
	ticketsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_tickets_submitted_total",
			Help: "Tickets submitted by priority.",
		},
		[]string{"priority"},
	)
	ticketRouting = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_ticket_routing_total",
			Help: "Routing attempts by outcome.",
		},
		[]string{"outcome"},
	)
	ticketTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_ticket_transitions_total",
			Help: "Ticket lifecycle events by type.",
		},
		[]string{"event_type"},
	)
	appointmentChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_appointment_changes_total",
			Help: "Appointment writes by resulting status.",
		},
		[]string{"status"},
	)
	ticketWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "frontdesk_ticket_wait_seconds",
			Help:    "Time from check-in to check-out for resolved tickets.",
			Buckets: []float64{60, 300, 600, 900, 1800, 3600, 7200, 14400},
		},
	)
	notificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_notifications_created_total",
			Help: "Staff notifications created by title.",
		},
		[]string{"title"},
	)
	customerNotices = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_customer_notices_total",
			Help: "Customer resolution notices by result.",
		},
		[]string{"result"},
	)
	suggestionsReturned = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "frontdesk_suggestions_returned",
			Help: "Suggestions returned by the last ranking call.",
		},
	)
	outboxDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_outbox_dispatched_total",
			Help: "Outbox events dispatched by result.",
		},
		[]string{"result"},
	)
)

func Register() {
	prometheus.MustRegister(
		httpRequests, httpLatency, kafkaConsumerLag, influxWriteFailures, asynqQueueDepth,
		ticketsSubmitted, ticketRouting, ticketTransitions, appointmentChanges, ticketWait,
		notificationsCreated, customerNotices, suggestionsReturned, outboxDispatched,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		status := strconv.Itoa(lrw.statusCode)
		path := RouteLabel(r.URL.Path)
		httpRequests.WithLabelValues(r.Method, path, status).Inc()
		httpLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// RouteLabel collapses record ids in /api/v1/<collection>/<id>/... paths so
// the path label stays low-cardinality.
func RouteLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 4 && parts[0] == "api" && parts[2] != "" {
		if parts[3] != "available" {
			parts[3] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func SetKafkaLag(topic string, group string, lag int64) {
	kafkaConsumerLag.WithLabelValues(topic, group).Set(float64(lag))
}

func IncInfluxWriteFailure() {
	influxWriteFailures.Inc()
}

func SetAsynqQueueDepth(queue string, depth int) {
	asynqQueueDepth.WithLabelValues(queue).Set(float64(depth))
}

func IncTicketSubmitted(priority string) {
	ticketsSubmitted.WithLabelValues(priority).Inc()
}

// IncTicketRouting records a routing outcome: assigned, manual, no_staff or skipped.
func IncTicketRouting(outcome string) {
	ticketRouting.WithLabelValues(outcome).Inc()
}

func IncTicketTransition(eventType string) {
	ticketTransitions.WithLabelValues(eventType).Inc()
}

// IncAppointmentChange counts an appointment write by its resulting status;
// deletes use "deleted".
func IncAppointmentChange(status string) {
	appointmentChanges.WithLabelValues(status).Inc()
}

func ObserveTicketWait(d time.Duration) {
	ticketWait.Observe(d.Seconds())
}

func IncNotificationCreated(title string) {
	notificationsCreated.WithLabelValues(title).Inc()
}

func IncCustomerNotice(result string) {
	customerNotices.WithLabelValues(result).Inc()
}

func SetSuggestionsReturned(n int) {
	suggestionsReturned.Set(float64(n))
}

func IncOutboxDispatched(result string) {
	outboxDispatched.WithLabelValues(result).Inc()
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
