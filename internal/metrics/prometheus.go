package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type prometheusObserver struct {
	requestDuration *prometheus.HistogramVec
	renewalCounter  *prometheus.CounterVec
	replayCounter   prometheus.Counter
	authGauge       prometheus.Gauge
	subscriberGauge prometheus.Gauge
}

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "condoadmin_client_request_duration_seconds",
		Help:    "Duration of outbound API requests by method and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
	renewalCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "condoadmin_client_renewals_total",
		Help: "Access token renewals by outcome.",
	}, []string{"outcome"})
	replayCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "condoadmin_client_replays_total",
		Help: "Requests replayed after a renewal.",
	})
	authGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "condoadmin_session_authenticated",
		Help: "1 while a user is signed in.",
	})
	subscriberGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "condoadmin_session_subscribers",
		Help: "Number of live session signal subscriptions.",
	})
)

// PrometheusObserver implements ClientObserver and SessionObserver.
type PrometheusObserver interface {
	ClientObserver
	SessionObserver
}

func NewPrometheusObserver() PrometheusObserver {
	return &prometheusObserver{
		requestDuration: requestDuration,
		renewalCounter:  renewalCounter,
		replayCounter:   replayCounter,
		authGauge:       authGauge,
		subscriberGauge: subscriberGauge,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (p *prometheusObserver) ObserveRequest(method string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	p.requestDuration.WithLabelValues(method, label).Observe(duration.Seconds())
}

func (p *prometheusObserver) RecordRenewal(outcome string) {
	p.renewalCounter.WithLabelValues(outcome).Inc()
}

func (p *prometheusObserver) RecordReplay() {
	p.replayCounter.Inc()
}

func (p *prometheusObserver) SetAuthenticated(authenticated bool) {
	if authenticated {
		p.authGauge.Set(1)
		return
	}
	p.authGauge.Set(0)
}

func (p *prometheusObserver) IncSubscribers() {
	p.subscriberGauge.Inc()
}

func (p *prometheusObserver) DecSubscribers() {
	p.subscriberGauge.Dec()
}
