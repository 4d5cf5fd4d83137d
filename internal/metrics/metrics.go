// Package metrics collects Prometheus metrics for pipeline runs.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Collector records pipeline activity.
type Collector struct {
	feedFetches  *prometheus.CounterVec
	feedLatency  prometheus.Histogram
	items        *prometheus.CounterVec
	tokens       *prometheus.CounterVec
	runDuration  prometheus.Gauge
	documentSize prometheus.Gauge
	lastSuccess  prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		feedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recaplet_feed_fetches_total",
			Help: "Feed fetches by source and result.",
		}, []string{"source", "result"}),
		feedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recaplet_feed_fetch_seconds",
			Help:    "Feed fetch latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recaplet_items_total",
			Help: "Feed items processed by outcome.",
		}, []string{"outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recaplet_llm_tokens_total",
			Help: "Language model tokens consumed by kind.",
		}, []string{"kind"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recaplet_run_duration_seconds",
			Help: "Duration of the last pipeline run.",
		}),
		documentSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recaplet_document_items",
			Help: "Number of items in the last written document.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recaplet_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
	}

	reg.MustRegister(
		c.feedFetches,
		c.feedLatency,
		c.items,
		c.tokens,
		c.runDuration,
		c.documentSize,
		c.lastSuccess,
	)

	return c
}

// RecordFeed records one feed fetch.
func (c *Collector) RecordFeed(source string, ok bool, duration time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	c.feedFetches.WithLabelValues(source, result).Inc()
	c.feedLatency.Observe(duration.Seconds())
}

// RecordItem records the outcome of one feed item.
func (c *Collector) RecordItem(outcome string) {
	c.items.WithLabelValues(outcome).Inc()
}

// RecordTokens records token usage of one model call.
func (c *Collector) RecordTokens(input, output int64) {
	c.tokens.WithLabelValues("input").Add(float64(input))
	c.tokens.WithLabelValues("output").Add(float64(output))
}

// RecordRun records a completed run that wrote items documents.
func (c *Collector) RecordRun(items int, duration time.Duration) {
	c.runDuration.Set(duration.Seconds())
	c.documentSize.Set(float64(items))
	c.lastSuccess.SetToCurrentTime()
}

// Push sends everything gathered by g to a Prometheus Pushgateway.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
