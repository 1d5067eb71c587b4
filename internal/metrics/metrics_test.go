package metrics

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/tipbot/tipfilter/internal/policy"
	"github.com/tipbot/tipfilter/internal/rules"
)

var (
	_ policy.MetricsCollector = (*Collector)(nil)
	_ rules.Observer          = (*Collector)(nil)
)

func findFamily(t *testing.T, c *Collector, name string) *dto.MetricFamily {
	t.Helper()
	families, err := c.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

func TestCollector_Report(t *testing.T) {
	c := New()
	c.Report(policy.FilterResult{Allowed: true, Filter: "KeywordFilter", Duration: time.Millisecond})
	c.Report(policy.FilterResult{Allowed: false, Filter: "KeywordFilter", Duration: 2 * time.Millisecond})
	c.Report(policy.FilterResult{Allowed: false, Filter: "KeywordFilter", Duration: 3 * time.Millisecond})

	require.Equal(t, 1.0, testutil.ToFloat64(c.filterResults.WithLabelValues("KeywordFilter", "true")))
	require.Equal(t, 2.0, testutil.ToFloat64(c.filterResults.WithLabelValues("KeywordFilter", "false")))

	mf := findFamily(t, c, "tipfilter_filter_duration_seconds")
	require.Len(t, mf.GetMetric(), 1)
	hist := mf.GetMetric()[0].GetHistogram()
	require.Equal(t, uint64(3), hist.GetSampleCount())
	require.InDelta(t, 0.006, hist.GetSampleSum(), 1e-9)
}

func TestCollector_Observer(t *testing.T) {
	c := New()
	c.ObserveHit(rules.Ad)
	c.ObserveHit(rules.Ad)
	c.ObserveHit(rules.Ban)
	c.ObserveTimeout(`(a+)+$`)

	require.Equal(t, 2.0, testutil.ToFloat64(c.ruleHits.WithLabelValues("ad")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.ruleHits.WithLabelValues("ban")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.regexTimeouts))
	require.Equal(t, 2, testutil.CollectAndCount(c.ruleHits))
}

func TestCollector_ObserveTimeoutOnlyCounts(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	c := New()
	c.ObserveTimeout(`(a+)+$`)
	require.Equal(t, 1.0, testutil.ToFloat64(c.regexTimeouts))
	require.Empty(t, buf.String(), "the matcher logs retired patterns")
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.ObserveHit(rules.Con)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `tipfilter_rule_hits_total{category="con"} 1`))
}
