// Package metrics exposes emulator rule verdicts and request latency to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"rockmap-rules/internal/firestore/domain/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records emulator metrics on a Prometheus registry
type Collector struct {
	verdicts        *prometheus.CounterVec
	rulesLoads      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rockmap_rules_verdicts_total",
			Help: "Security rules decisions by operation and verdict",
		}, []string{"operation", "verdict"}),
		rulesLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rockmap_rules_loads_total",
			Help: "Rules load requests by result",
		}, []string{"result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rockmap_emulator_request_duration_seconds",
			Help:    "Emulator HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}

	reg.MustRegister(c.verdicts, c.rulesLoads, c.requestDuration)
	return c
}

// RecordVerdict counts one rules decision
func (c *Collector) RecordVerdict(operation repository.OperationType, allowed bool) {
	verdict := "denied"
	if allowed {
		verdict = "allowed"
	}
	c.verdicts.WithLabelValues(string(operation), verdict).Inc()
}

// RecordRulesLoad counts one rules load
func (c *Collector) RecordRulesLoad(success bool) {
	result := "error"
	if success {
		result = "success"
	}
	c.rulesLoads.WithLabelValues(result).Inc()
}

// Middleware observes the latency of every request
func (c *Collector) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()
		status := ctx.Response().StatusCode()
		if fiberErr, ok := err.(*fiber.Error); ok {
			status = fiberErr.Code
		}
		c.requestDuration.WithLabelValues(ctx.Method(), strconv.Itoa(status)).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler returns the fiber handler serving the Prometheus scrape endpoint
func Handler(gatherer prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
