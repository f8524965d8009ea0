package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/simchatzion/ledger/core/cleaning"
)

const namespace = "ledger"

// Recorder exposes ledger events and HTTP requests as prometheus metrics.
type Recorder struct {
	registry *prometheus.Registry

	paymentsCreated *prometheus.CounterVec
	paymentsAmount  *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	emails          *prometheus.CounterVec
	requests        *prometheus.HistogramVec
}

var _ cleaning.Recorder = (*Recorder)(nil) // interface compliance check

// NewRecorder registers the metrics on a registry of its own, so that several apps (i.e. tests) may coexist.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		paymentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_created_total",
			Help:      "Number of cleaning payments created, by entry source.",
		}, []string{"source"}),
		paymentsAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_amount_ils_total",
			Help:      "Sum of the created cleaning payments in ILS, by entry source.",
		}, []string{"source"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_month_rejections_total",
			Help:      "Number of payments rejected because the case already has a payment for the month.",
		}, []string{"source"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Number of emails sent, by type and status.",
		}, []string{"type", "status"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.paymentsCreated, r.paymentsAmount, r.duplicates, r.emails, r.requests,
	)
	return r
}

func (r *Recorder) Gatherer() prometheus.Gatherer { return r.registry }

// Handler serves the metrics in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) PaymentsCreated(source string, count int, total decimal.Decimal) {
	if count <= 0 {
		return
	}
	r.paymentsCreated.WithLabelValues(source).Add(float64(count))
	amount, _ := total.Float64()
	r.paymentsAmount.WithLabelValues(source).Add(amount)
}

func (r *Recorder) DuplicateMonthRejected(source string) {
	r.duplicates.WithLabelValues(source).Inc()
}

func (r *Recorder) EmailsSent(emailType string, sent, failed int) {
	if sent > 0 {
		r.emails.WithLabelValues(emailType, string(cleaning.EmailSent)).Add(float64(sent))
	}
	if failed > 0 {
		r.emails.WithLabelValues(emailType, string(cleaning.EmailFailed)).Add(float64(failed))
	}
}

// Middleware observes the duration of every request; routes are labeled by path pattern, not by URL.
// Errors are handled here, outer middlewares see a nil error and a committed response.
func (r *Recorder) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				// let the error handler write the response, so that its status is observed
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			r.requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(c.Response().Status)).
				Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
