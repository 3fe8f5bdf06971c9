package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/guimove/replanner/internal/kube"
	"github.com/guimove/replanner/internal/metrics"
)

// resolveCollector creates an AttributeCollector from, in order: a static
// attributes file, the explicit --prometheus-url, or a Prometheus-compatible
// service discovered in the cluster. It returns nil when none applies.
//
// Outside the cluster a port-forward tunnel is opened to the discovered
// service. The returned cleanup function closes it; it is nil when no tunnel
// was created.
func resolveCollector(ctx context.Context, attributesFile string, log *zap.Logger) (metrics.AttributeCollector, func(), error) {
	if attributesFile != "" {
		return metrics.NewStaticCollector(attributesFile), nil, nil
	}

	opts := []metrics.PrometheusOption{
		metrics.WithTimeout(cfg.Prometheus.Timeout),
		metrics.WithLogger(log.With(zap.String("component", "metrics"))),
	}

	// Explicit URL takes precedence
	if cfg.Prometheus.URL != "" {
		c, err := metrics.NewPrometheusCollector(cfg.Prometheus.URL, opts...)
		return c, nil, err
	}
	if !cfg.Kubernetes.Enabled {
		return nil, nil, nil
	}

	client, err := kube.NewClient(cfg.Kubernetes.Kubeconfig, cfg.Kubernetes.Context)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to Kubernetes: %w", err)
	}
	svc, err := kube.FindPrometheus(ctx, client.Interface, cfg.Kubernetes.Namespace)
	if err != nil {
		return nil, nil, err
	}
	log.Info("discovered metrics service",
		zap.String("service", svc.Namespace+"/"+svc.Name), zap.String("url", svc.URL()))

	promURL := svc.URL()
	var cleanup func()
	if client.Context != "" {
		// Service DNS does not resolve from a workstation.
		tunnel, err := kube.Forward(ctx, client, svc)
		if err != nil {
			return nil, nil, fmt.Errorf("starting port-forward: %w", err)
		}
		promURL = tunnel.URL()
		cleanup = tunnel.Close
		log.Info("port-forwarding", zap.String("pod", tunnel.Pod), zap.String("url", promURL))
	}

	c, err := metrics.NewPrometheusCollector(promURL, opts...)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, nil, err
	}
	return c, cleanup, nil
}

