package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guimove/replanner/internal/kube"
	"github.com/guimove/replanner/internal/model"
	"github.com/guimove/replanner/internal/orchestrator"
	"github.com/guimove/replanner/internal/scenario"
)

// addSourceFlags declares the flags selecting where the model comes from.
func addSourceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("scenario", "f", "", "scenario file (YAML or JSON)")
	f.Bool("from-cluster", false, "read nodes and pods from the Kubernetes cluster")
	f.String("attributes", "", "static VM attributes file (JSON), instead of Prometheus")
}

// loadSource returns the source model and the scenario carrying the
// constraints. From the cluster, the scenario is optional and only its
// constraints, objective and plan are used.
func loadSource(ctx context.Context, cmd *cobra.Command, log *zap.Logger) (*model.Model, *scenario.Scenario, string, error) {
	path, _ := cmd.Flags().GetString("scenario")
	fromCluster, _ := cmd.Flags().GetBool("from-cluster")

	sc := &scenario.Scenario{}
	if path != "" {
		var err error
		if sc, err = scenario.Load(path); err != nil {
			return nil, nil, "", err
		}
	}

	if !fromCluster {
		if path == "" {
			return nil, nil, "", fmt.Errorf("either --scenario or --from-cluster is required")
		}
		mo, err := sc.Model()
		if err != nil {
			return nil, nil, "", err
		}
		return mo, sc, path, nil
	}

	client, err := kube.NewClient(cfg.Kubernetes.Kubeconfig, cfg.Kubernetes.Context)
	if err != nil {
		return nil, nil, "", fmt.Errorf("connecting to Kubernetes: %w", err)
	}
	loader := &kube.Loader{
		Client:            client.Interface,
		Namespace:         cfg.Kubernetes.Namespace,
		ExcludeNamespaces: cfg.Kubernetes.ExcludeNamespaces,
		Resources:         cfg.Kubernetes.Resources,
		Logger:            log.With(zap.String("component", "kube")),
	}
	mo, err := loader.Load(ctx)
	if err != nil {
		return nil, nil, "", fmt.Errorf("loading cluster: %w", err)
	}
	source := "cluster"
	if client.Context != "" {
		source = "cluster " + client.Context
	}
	return mo, sc, source, nil
}

// buildRequest turns the source into an orchestrator request. A non-empty
// objective overrides the scenario's.
func buildRequest(mo *model.Model, sc *scenario.Scenario, source, objective string) (orchestrator.Request, error) {
	if objective != "" {
		sc.Objective = objective
	}
	cstrs, err := sc.SatConstraints()
	if err != nil {
		return orchestrator.Request{}, err
	}
	obj, err := sc.OptConstraint()
	if err != nil {
		return orchestrator.Request{}, err
	}
	return orchestrator.Request{Source: source, Model: mo, Constraints: cstrs, Objective: obj}, nil
}
