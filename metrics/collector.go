package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RouterSnapshot is the router state exported as gauges on every scrape.
type RouterSnapshot struct {
	Paused  bool
	FeeRate uint64
	Signers int
	Agents  int
}

type RouterStateSource interface {
	Snapshot() RouterSnapshot
}

type RouterStateCollector struct {
	source RouterStateSource

	paused  *prometheus.Desc
	feeRate *prometheus.Desc
	signers *prometheus.Desc
	agents  *prometheus.Desc
}

func NewRouterStateCollector(source RouterStateSource) prometheus.Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(apNamespace, subsystem, name), help, nil, nil)
	}

	return &RouterStateCollector{
		source:  source,
		paused:  desc("paused", "1 when the router is paused"),
		feeRate: desc("fee_rate_bps", "Fee rate applied to the call value, in basis points"),
		signers: desc("signers", "Number of authorized batch signers"),
		agents:  desc("agents", "Number of agents created on the router"),
	}
}

func (c *RouterStateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.paused
	ch <- c.feeRate
	ch <- c.signers
	ch <- c.agents
}

func (c *RouterStateCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Snapshot()

	paused := 0.0
	if s.Paused {
		paused = 1
	}
	ch <- prometheus.MustNewConstMetric(c.paused, prometheus.GaugeValue, paused)
	ch <- prometheus.MustNewConstMetric(c.feeRate, prometheus.GaugeValue, float64(s.FeeRate))
	ch <- prometheus.MustNewConstMetric(c.signers, prometheus.GaugeValue, float64(s.Signers))
	ch <- prometheus.MustNewConstMetric(c.agents, prometheus.GaugeValue, float64(s.Agents))
}
