package kube

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client bundles the clientset with the REST config tunnels are opened with.
type Client struct {
	Interface kubernetes.Interface
	Config    *rest.Config
	// Context is the kubeconfig context in use, empty in-cluster.
	Context string
}

// NewClient resolves the cluster configuration in this order: the explicit
// kubeconfig path, $KUBECONFIG, ~/.kube/config, then the in-cluster config.
func NewClient(kubeconfig, context string) (*Client, error) {
	config, currentContext, err := buildConfig(kubeconfig, context)
	if err != nil {
		return nil, fmt.Errorf("building kubernetes config: %w", err)
	}
	cs, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}
	return &Client{Interface: cs, Config: config, Context: currentContext}, nil
}

func kubeconfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("KUBECONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(home, ".kube", "config")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func buildConfig(kubeconfig, context string) (*rest.Config, string, error) {
	path := kubeconfigPath(kubeconfig)
	if path == "" {
		rc, err := rest.InClusterConfig()
		if err != nil {
			return nil, "", fmt.Errorf("no kubeconfig found and not running in-cluster: %w", err)
		}
		return rc, "", nil
	}

	overrides := &clientcmd.ConfigOverrides{CurrentContext: context}
	cc := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: path}, overrides)
	raw, err := cc.RawConfig()
	if err != nil {
		return nil, "", err
	}
	current := raw.CurrentContext
	if context != "" {
		current = context
	}
	rc, err := cc.ClientConfig()
	if err != nil {
		return nil, "", err
	}
	return rc, current, nil
}
