// Package metrics exposes Prometheus instrumentation for the filter
// pipeline and the rule matcher.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tipbot/tipfilter/internal/policy"
	"github.com/tipbot/tipfilter/internal/rules"
)

const namespace = "tipfilter"

// Collector implements policy.MetricsCollector and rules.Observer on a
// private registry.
type Collector struct {
	registry *prometheus.Registry

	filterResults  *prometheus.CounterVec
	filterDuration *prometheus.HistogramVec
	ruleHits       *prometheus.CounterVec
	regexTimeouts  prometheus.Counter
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		filterResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_results_total",
			Help:      "Filter verdicts by filter and outcome.",
		}, []string{"filter", "allowed"}),
		filterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "filter_duration_seconds",
			Help:      "Time spent in each filter.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"filter"}),
		ruleHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_hits_total",
			Help:      "Pattern hits by rule category.",
		}, []string{"category"}),
		regexTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regex_timeouts_total",
			Help:      "Patterns retired after exceeding the match time budget.",
		}),
	}

	c.registry.MustRegister(
		c.filterResults,
		c.filterDuration,
		c.ruleHits,
		c.regexTimeouts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Report records one filter result.
func (c *Collector) Report(res policy.FilterResult) {
	c.filterResults.WithLabelValues(res.Filter, strconv.FormatBool(res.Allowed)).Inc()
	c.filterDuration.WithLabelValues(res.Filter).Observe(res.Duration.Seconds())
}

func (c *Collector) ObserveHit(cat rules.Category) {
	c.ruleHits.WithLabelValues(cat.String()).Inc()
}

// ObserveTimeout counts a retired pattern. The matcher already logs it.
func (c *Collector) ObserveTimeout(string) {
	c.regexTimeouts.Inc()
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Serving metrics", "listen", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
