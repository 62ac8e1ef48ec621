// Package export bridges a tictoc.Timer into Prometheus. The
// collector folds pending measurements on every scrape and publishes
// the per-tag summary statistics as const metrics.
package export

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/BerriJ/tictoc"
)

const subsystem = "tictoc"

// Collector implements prometheus.Collector over a Timer. Register it
// once per Timer; durations are converted from nanoseconds to seconds
// per Prometheus convention.
type Collector struct {
	timer *tictoc.Timer

	count  *prometheus.Desc
	mean   *prometheus.Desc
	stddev *prometheus.Desc
	min    *prometheus.Desc
	max    *prometheus.Desc
}

// NewCollector returns a collector publishing the timer's aggregate
// under the given namespace.
func NewCollector(timer *tictoc.Timer, namespace string) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, name),
			help,
			[]string{"tag"},
			nil,
		)
	}
	return &Collector{
		timer:  timer,
		count:  desc("intervals_total", "Number of completed intervals folded for this tag."),
		mean:   desc("mean_seconds", "Running mean interval duration for this tag."),
		stddev: desc("stddev_seconds", "Sample standard deviation of interval durations for this tag."),
		min:    desc("min_seconds", "Shortest interval observed for this tag."),
		max:    desc("max_seconds", "Longest interval observed for this tag."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.count
	ch <- c.mean
	ch <- c.stddev
	ch <- c.min
	ch <- c.max
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for tag, s := range c.timer.Aggregate() {
		ch <- prometheus.MustNewConstMetric(c.count, prometheus.CounterValue, float64(s.Count), tag)
		ch <- prometheus.MustNewConstMetric(c.mean, prometheus.GaugeValue, s.Mean/1e9, tag)
		ch <- prometheus.MustNewConstMetric(c.stddev, prometheus.GaugeValue, s.StdDev()/1e9, tag)
		ch <- prometheus.MustNewConstMetric(c.min, prometheus.GaugeValue, s.Min/1e9, tag)
		ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, s.Max/1e9, tag)
	}
}
