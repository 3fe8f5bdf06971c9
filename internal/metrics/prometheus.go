package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	prommodel "github.com/prometheus/common/model"
	"go.uber.org/zap"

	"github.com/guimove/replanner/internal/model"
)

const mib = 1 << 20

// PrometheusCollector reads memory usage from Prometheus, Thanos, or Cortex.
// VM identifiers are expected as "<namespace>/<pod>".
type PrometheusCollector struct {
	api     promv1.API
	backend string
	timeout time.Duration
	log     *zap.Logger
}

// PrometheusOption configures the Prometheus collector.
type PrometheusOption func(*PrometheusCollector)

// WithTimeout sets the query timeout.
func WithTimeout(d time.Duration) PrometheusOption {
	return func(c *PrometheusCollector) { c.timeout = d }
}

func WithLogger(log *zap.Logger) PrometheusOption {
	return func(c *PrometheusCollector) { c.log = log }
}

// NewPrometheusCollector creates a collector connected to the given endpoint.
func NewPrometheusCollector(endpoint string, opts ...PrometheusOption) (*PrometheusCollector, error) {
	client, err := promapi.NewClient(promapi.Config{Address: endpoint})
	if err != nil {
		return nil, fmt.Errorf("creating prometheus client: %w", err)
	}
	c := &PrometheusCollector{
		api:     promv1.NewAPI(client),
		backend: "prometheus",
		timeout: 60 * time.Second,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ping checks connectivity and detects the backend type.
func (c *PrometheusCollector) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, _, err := c.api.Query(ctx, "up", time.Now()); err != nil {
		return fmt.Errorf("%w: %v", ErrPrometheusUnreachable, err)
	}
	c.detectBackend(ctx)
	return nil
}

func (c *PrometheusCollector) BackendType() string { return c.backend }

// detectBackend tries to identify Thanos or Cortex from their own metrics.
func (c *PrometheusCollector) detectBackend(ctx context.Context) {
	for backend, probe := range map[string]string{
		"thanos": "thanos_store_nodes_total",
		"cortex": "cortex_ingester_active_series",
	} {
		v, _, err := c.api.Query(ctx, probe, time.Now())
		if err != nil {
			continue
		}
		if vec, ok := v.(prommodel.Vector); ok && len(vec) > 0 {
			c.backend = backend
			return
		}
	}
}

// Collect sets memUsed (MiB) and coldDirtyRate (MiB/s) on the VMs found in
// the query results.
func (c *PrometheusCollector) Collect(ctx context.Context, mo *model.Model, opts CollectOptions) error {
	at := opts.At
	if at.IsZero() {
		at = time.Now()
	}
	window := formatDuration(opts.Window)
	if window == "" {
		window = "10m"
	}

	type queryResult struct {
		attr string
		data prommodel.Value
		err  error
	}
	queries := map[string]string{
		AttrMemUsed:       queryMemoryWorkingSet(),
		AttrColdDirtyRate: queryMemoryWriteRate(window),
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	results := make(chan queryResult, len(queries))
	for attr, q := range queries {
		go func(a, query string) {
			data, warnings, err := c.api.Query(queryCtx, query, at)
			if len(warnings) > 0 {
				c.log.Warn("query warnings", zap.String("attribute", a), zap.Strings("warnings", warnings))
			}
			results <- queryResult{attr: a, data: data, err: err}
		}(attr, q)
	}

	var errs []string
	found := 0
	for range queries {
		r := <-results
		if r.err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", r.attr, r.err))
			continue
		}
		for vm, v := range extractVector(r.data) {
			if !mo.Mapping.Contains(vm) {
				continue
			}
			found++
			if r.attr == AttrMemUsed {
				mo.Attributes.PutVM(vm, r.attr, int(v/mib))
			} else {
				mo.Attributes.PutVM(vm, r.attr, v/mib)
			}
		}
	}
	if found == 0 {
		detail := ""
		if len(errs) > 0 {
			detail = "; query errors: " + strings.Join(errs, ", ")
		}
		return fmt.Errorf("%w%s", ErrNoMetricsFound, detail)
	}
	c.log.Debug("collected attributes", zap.Int("values", found), zap.String("backend", c.backend))
	return nil
}

// extractVector maps "<namespace>/<pod>" to the sample values of a vector.
func extractVector(v prommodel.Value) map[model.VM]float64 {
	result := make(map[model.VM]float64)
	vec, ok := v.(prommodel.Vector)
	if !ok {
		return result
	}
	for _, sample := range vec {
		ns := string(sample.Metric["namespace"])
		pod := string(sample.Metric["pod"])
		if ns == "" || pod == "" {
			continue
		}
		result[model.VM(ns+"/"+pod)] = float64(sample.Value)
	}
	return result
}

// formatDuration formats a time.Duration to a Prometheus-compatible duration string.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	hours := int(d.Hours())
	if hours >= 24 && hours%24 == 0 {
		return fmt.Sprintf("%dd", hours/24)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh", hours)
	}
	if minutes := int(d.Minutes()); minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
