package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "eventpush_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	Enqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "eventpush_enqueue_total", Help: "SQS enqueue results"},
		[]string{"result"},
	)
	OneSignalSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "onesignal_send_total", Help: "OneSignal send outcomes"},
		[]string{"result", "http_status"},
	)
	OneSignalLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "onesignal_send_latency_seconds", Help: "OneSignal send latency"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "onesignal_webhook_events_total", Help: "Webhook events"},
		[]string{"event"},
	)
	Suppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "eventpush_suppressed_total", Help: "Suppressed pushes"},
		[]string{"reason"},
	)
	RouteParses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "eventpush_route_parse_total", Help: "Route payload parses"},
		[]string{"result"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, Enqueues, OneSignalSend, OneSignalLatency, WebhookEvents, Suppressed, RouteParses)
}
