package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsGenerator interface {
	AddUptime(float64)

	IncExecution(kind, status string)
	IncRevert(code string)
	IncAgentCreated()
	IncHttpRequest(route, status string)
	IncMaintenance(job, status string)
}

// RouterMetrics contains instrumented metrics that should be incremented by the router node using the methods below
type RouterMetrics struct {
	uptime prometheus.Counter

	numExecutions  *prometheus.CounterVec
	numReverts     *prometheus.CounterVec
	numAgents      prometheus.Counter
	numHttpRequest *prometheus.CounterVec
	numMaintenance *prometheus.CounterVec
}

const apNamespace = "ap"
const subsystem = "router"

func NewRouterMetrics(reg prometheus.Registerer) *RouterMetrics {
	return &RouterMetrics{
		uptime: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Subsystem: subsystem,
				Name:      "uptime_milliseconds_total",
				Help:      "The elapse time in milliseconds since the node is booted",
			}),

		numExecutions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Subsystem: subsystem,
				Name:      "num_executions_total",
				Help:      "The number of batches submitted through the router, by kind (direct, signed) and outcome.",
			}, []string{"kind", "status"}),

		numReverts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Subsystem: subsystem,
				Name:      "num_reverts_total",
				Help:      "The number of reverted batches by revert reason",
			}, []string{"code"}),

		numAgents: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Subsystem: subsystem,
				Name:      "num_agents_created_total",
				Help:      "The number of agents created since boot",
			}),

		numHttpRequest: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Subsystem: subsystem,
				Name:      "num_http_request_total",
				Help:      "The number of API requests by route and status code",
			}, []string{"route", "status"}),

		numMaintenance: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Subsystem: subsystem,
				Name:      "num_maintenance_runs_total",
				Help:      "The number of scheduled storage maintenance runs. If backup isn't increasing, the scheduler is stuck",
			}, []string{"job", "status"}),
	}
}

func (m *RouterMetrics) AddUptime(total float64) {
	m.uptime.Add(total)
}

func (m *RouterMetrics) IncExecution(kind, status string) {
	m.numExecutions.WithLabelValues(kind, status).Inc()
}

func (m *RouterMetrics) IncRevert(code string) {
	m.numReverts.WithLabelValues(code).Inc()
}

func (m *RouterMetrics) IncAgentCreated() {
	m.numAgents.Inc()
}

func (m *RouterMetrics) IncHttpRequest(route, status string) {
	m.numHttpRequest.WithLabelValues(route, status).Inc()
}

func (m *RouterMetrics) IncMaintenance(job, status string) {
	m.numMaintenance.WithLabelValues(job, status).Inc()
}
