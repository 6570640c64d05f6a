package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/flexcompute/flexd/core/metrics"
)

// PromSink records planning and protocol events in Prometheus metrics.
type PromSink struct {
	planningCycles   *prometheus.CounterVec
	jobsScheduled    prometheus.Counter
	jobsRejected     prometheus.Counter
	offersPublished  prometheus.Counter
	planningDuration prometheus.Histogram
	protocolRequests *prometheus.CounterVec
	callbacks        *prometheus.CounterVec
	callbackAttempts prometheus.Histogram
}

// NewPromSink registers the collectors on the provided registerer. If reg is
// nil, the default registerer is used. Already-registered collectors are
// reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		planningCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexd_planning_cycles_total",
			Help: "Total number of planning cycles",
		}, []string{"region"}),
		jobsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flexd_jobs_scheduled_total",
			Help: "Total jobs placed by the scheduling engine",
		}),
		jobsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flexd_jobs_rejected_total",
			Help: "Total jobs rejected by the scheduling engine",
		}),
		offersPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flexd_flex_offers_total",
			Help: "Total flexibility offers derived",
		}),
		planningDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flexd_planning_duration_seconds",
			Help:    "Planning cycle duration",
			Buckets: prometheus.DefBuckets,
		}),
		protocolRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexd_protocol_requests_total",
			Help: "Inbound protocol requests by action and outcome",
		}, []string{"action", "accepted", "error_kind"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flexd_callbacks_total",
			Help: "Outbound callback deliveries by action and outcome",
		}, []string{"action", "delivered"}),
		callbackAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flexd_callback_attempts",
			Help:    "Delivery attempts per callback",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		}),
	}

	collectors := []prometheus.Collector{
		s.planningCycles, s.jobsScheduled, s.jobsRejected, s.offersPublished,
		s.planningDuration, s.protocolRequests, s.callbacks, s.callbackAttempts,
	}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			collectors[i] = are.ExistingCollector
		}
	}
	s.planningCycles = collectors[0].(*prometheus.CounterVec)
	s.jobsScheduled = collectors[1].(prometheus.Counter)
	s.jobsRejected = collectors[2].(prometheus.Counter)
	s.offersPublished = collectors[3].(prometheus.Counter)
	s.planningDuration = collectors[4].(prometheus.Histogram)
	s.protocolRequests = collectors[5].(*prometheus.CounterVec)
	s.callbacks = collectors[6].(*prometheus.CounterVec)
	s.callbackAttempts = collectors[7].(prometheus.Histogram)
	return s, nil
}

// RecordPlanning increments planning counters and observes the duration.
func (s *PromSink) RecordPlanning(rec coremetrics.PlanningRecord) error {
	s.planningCycles.WithLabelValues(rec.Region).Inc()
	s.jobsScheduled.Add(float64(rec.Scheduled))
	s.jobsRejected.Add(float64(rec.Rejected))
	s.offersPublished.Add(float64(rec.Offers))
	s.planningDuration.Observe(rec.Elapsed.Seconds())
	return nil
}

// RecordProtocol counts an inbound request outcome.
func (s *PromSink) RecordProtocol(rec coremetrics.ProtocolRecord) error {
	s.protocolRequests.WithLabelValues(rec.Action, strconv.FormatBool(rec.Accepted), rec.ErrorKind).Inc()
	return nil
}

// RecordCallback counts an outbound delivery outcome.
func (s *PromSink) RecordCallback(rec coremetrics.CallbackRecord) error {
	s.callbacks.WithLabelValues(rec.Action, strconv.FormatBool(rec.Delivered)).Inc()
	s.callbackAttempts.Observe(float64(rec.Attempts))
	return nil
}
