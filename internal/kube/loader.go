// Package kube builds source models from a Kubernetes cluster: nodes become
// nodes and pods become VMs.
package kube

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/guimove/replanner/internal/model"
)

// Attributes set on the elements of a loaded model.
const (
	AttrNamespace = "namespace"
	AttrZone      = "zone"
	zoneLabel     = "topology.kubernetes.io/zone"
)

// Loader reads nodes and pods.
type Loader struct {
	Client kubernetes.Interface
	// Namespace restricts the pods read. Empty means all namespaces.
	Namespace         string
	ExcludeNamespaces []string
	// Resources lists the resources to declare, among cpu (millicores)
	// and memory (MiB).
	Resources []string
	Logger    *zap.Logger
}

// Load builds the model. Ready and schedulable nodes are online. Running
// pods are running VMs on their node; unscheduled pending pods are ready
// VMs. Pods on nodes that are not online are left out.
func (l *Loader) Load(ctx context.Context) (*model.Model, error) {
	log := l.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rcs := make(map[string]*model.ShareableResource)
	for _, name := range l.Resources {
		if name != string(corev1.ResourceCPU) && name != string(corev1.ResourceMemory) {
			return nil, fmt.Errorf("unsupported resource %q: expected cpu or memory", name)
		}
		rcs[name] = model.NewShareableResource(name, 0, 0)
	}

	nodes, err := l.Client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	mo := model.New()
	for i := range nodes.Items {
		kn := &nodes.Items[i]
		n := model.Node(kn.Name)
		if schedulable(kn) {
			mo.Mapping.AddOnlineNode(n)
		} else if err := mo.Mapping.AddOfflineNode(n); err != nil {
			return nil, err
		}
		if z, ok := kn.Labels[zoneLabel]; ok {
			mo.Attributes.PutNode(n, AttrZone, z)
		}
		for name, rc := range rcs {
			rc.SetCapacity(n, quantity(kn.Status.Allocatable, corev1.ResourceName(name)))
		}
	}

	pods, err := l.Client.CoreV1().Pods(l.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing pods: %w", err)
	}
	for i := range pods.Items {
		pod := &pods.Items[i]
		if slices.Contains(l.ExcludeNamespaces, pod.Namespace) {
			continue
		}
		vm := model.VM(pod.Namespace + "/" + pod.Name)
		switch {
		case pod.Status.Phase == corev1.PodRunning, pod.Status.Phase == corev1.PodPending && pod.Spec.NodeName != "":
			n := model.Node(pod.Spec.NodeName)
			if !mo.Mapping.IsOnline(n) {
				log.Debug("skipping pod on a node that is not online", zap.String("pod", string(vm)), zap.String("node", string(n)))
				continue
			}
			if err := mo.Mapping.AddRunningVM(vm, n); err != nil {
				return nil, err
			}
		case pod.Status.Phase == corev1.PodPending:
			mo.Mapping.AddReadyVM(vm)
		default:
			continue
		}
		mo.Attributes.PutVM(vm, AttrNamespace, pod.Namespace)
		for name, rc := range rcs {
			rc.SetConsumption(vm, podRequest(pod, corev1.ResourceName(name)))
		}
	}
	for _, rc := range rcs {
		mo.AddResource(rc)
	}
	log.Info("loaded cluster",
		zap.Int("nodes", len(mo.Mapping.Nodes())),
		zap.Int("vms", len(mo.Mapping.VMs())))
	return mo, nil
}

func schedulable(n *corev1.Node) bool {
	if n.Spec.Unschedulable {
		return false
	}
	for _, c := range n.Status.Conditions {
		if c.Type == corev1.NodeReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

// quantity converts cpu to millicores and memory to MiB.
func quantity(rl corev1.ResourceList, name corev1.ResourceName) int {
	q, ok := rl[name]
	if !ok {
		return 0
	}
	if name == corev1.ResourceCPU {
		return int(q.MilliValue())
	}
	return int(q.Value() >> 20)
}

// podRequest is the sum of the container requests, or the largest init
// container request when that is higher.
func podRequest(pod *corev1.Pod, name corev1.ResourceName) int {
	sum := 0
	for _, c := range pod.Spec.Containers {
		sum += quantity(c.Resources.Requests, name)
	}
	for _, c := range pod.Spec.InitContainers {
		sum = max(sum, quantity(c.Resources.Requests, name))
	}
	return sum
}
