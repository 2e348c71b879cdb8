// Package promx exports the extension statistics of a container as
// Prometheus metrics.
package promx

import (
	di "github.com/dozm/opendi"
	"github.com/prometheus/client_golang/prometheus"
)

type counter struct {
	desc  *prometheus.Desc
	value func(di.StatsSnapshot) int64
}

// Collector reads the statistics of one container on every scrape.
type Collector struct {
	container di.Container
	counters  []counter
}

func newCounter(namespace, name, help string, labels prometheus.Labels, value func(di.StatsSnapshot) int64) counter {
	return counter{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "container", name), help, nil, labels),
		value: value,
	}
}

// NewCollector returns a collector for c. Metrics are named
// <namespace>_container_<name>; labels are attached to every metric.
func NewCollector(c di.Container, namespace string, labels prometheus.Labels) *Collector {
	return &Collector{
		container: c,
		counters: []counter{
			newCounter(namespace, "unregistered_requests_total", "Requests for service types without registration.", labels,
				func(s di.StatsSnapshot) int64 { return s.UnregisteredRequests }),
			newCounter(namespace, "open_generic_match_attempts_total", "Open generic match attempts.", labels,
				func(s di.StatsSnapshot) int64 { return s.MatchAttempts }),
			newCounter(namespace, "open_generic_matches_total", "Open generic matches.", labels,
				func(s di.StatsSnapshot) int64 { return s.Matches }),
			newCounter(namespace, "open_generic_misses_total", "Open generic matches rejected by inference or constraints.", labels,
				func(s di.StatsSnapshot) int64 { return s.Misses }),
			newCounter(namespace, "closed_registrations_total", "Descriptors registered after the container was built. Closing an open generic registers the closed service and the closed implementation.", labels,
				func(s di.StatsSnapshot) int64 { return s.ClosedRegistrations }),
			newCounter(namespace, "interceptions_total", "Call sites wrapped by an interception rule.", labels,
				func(s di.StatsSnapshot) int64 { return s.Interceptions }),
			newCounter(namespace, "constant_folds_total", "Interceptions folded into a constant proxy.", labels,
				func(s di.StatsSnapshot) int64 { return s.ConstantFolds }),
			newCounter(namespace, "proxies_created_total", "Interception proxies created.", labels,
				func(s di.StatsSnapshot) int64 { return s.ProxiesCreated }),
		},
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.counters {
		ch <- m.desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s, ok := di.StatsOf(c.container)
	if !ok {
		return
	}
	for _, m := range c.counters {
		ch <- prometheus.MustNewConstMetric(m.desc, prometheus.CounterValue, float64(m.value(s)))
	}
}
