package kube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"
)

var ErrNoPrometheus = errors.New("no Prometheus-compatible service found")

// Selectors of the query services, Thanos first.
var prometheusSelectors = []string{
	"app.kubernetes.io/component=query,app.kubernetes.io/name=thanos",
	"app.kubernetes.io/name=thanos-query",
	"app=kube-prometheus-stack-prometheus",
	"app=prometheus,component=server",
	"app=prometheus-server",
	"app.kubernetes.io/name=prometheus",
}

// Service is a discovered metrics endpoint.
type Service struct {
	Name      string
	Namespace string
	Port      int32
}

// URL is the in-cluster address of s.
func (s *Service) URL() string {
	return fmt.Sprintf("http://%s.%s.svc:%d", s.Name, s.Namespace, s.Port)
}

// FindPrometheus returns the first service matching a well-known selector.
func FindPrometheus(ctx context.Context, client kubernetes.Interface, namespace string) (*Service, error) {
	for _, sel := range prometheusSelectors {
		list, err := client.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{LabelSelector: sel})
		if err != nil || len(list.Items) == 0 {
			continue
		}
		svc := list.Items[0]
		if port := servicePort(svc); port != 0 {
			return &Service{Name: svc.Name, Namespace: svc.Namespace, Port: port}, nil
		}
	}
	return nil, ErrNoPrometheus
}

func servicePort(svc corev1.Service) int32 {
	for _, p := range svc.Spec.Ports {
		switch p.Name {
		case "http", "web", "http-web":
			return p.Port
		}
	}
	for _, p := range svc.Spec.Ports {
		if p.Protocol == corev1.ProtocolTCP || p.Protocol == "" {
			return p.Port
		}
	}
	return 0
}

// Tunnel is an open port-forward to a pod.
type Tunnel struct {
	LocalPort int32
	Pod       string
	stop      chan struct{}
}

// URL is the local address of the tunnel.
func (t *Tunnel) URL() string { return fmt.Sprintf("http://127.0.0.1:%d", t.LocalPort) }

func (t *Tunnel) Close() { close(t.stop) }

// Forward opens a tunnel to a running pod behind svc.
func Forward(ctx context.Context, c *Client, svc *Service) (*Tunnel, error) {
	pod, port, err := backingPod(ctx, c.Interface, svc)
	if err != nil {
		return nil, err
	}

	transport, upgrader, err := spdy.RoundTripperFor(c.Config)
	if err != nil {
		return nil, fmt.Errorf("creating SPDY round-tripper: %w", err)
	}
	url := c.Interface.CoreV1().RESTClient().Post().
		Resource("pods").Namespace(svc.Namespace).Name(pod).
		SubResource("portforward").URL()
	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: transport}, http.MethodPost, url)

	stop := make(chan struct{}, 1)
	ready := make(chan struct{})
	fw, err := portforward.New(dialer, []string{fmt.Sprintf("0:%d", port)}, stop, ready, io.Discard, io.Discard)
	if err != nil {
		return nil, fmt.Errorf("creating port-forwarder: %w", err)
	}
	errc := make(chan error, 1)
	go func() { errc <- fw.ForwardPorts() }()

	select {
	case <-ready:
	case err := <-errc:
		return nil, fmt.Errorf("port-forward failed: %w", err)
	case <-ctx.Done():
		close(stop)
		return nil, ctx.Err()
	}
	ports, err := fw.GetPorts()
	if err != nil {
		close(stop)
		return nil, fmt.Errorf("getting forwarded ports: %w", err)
	}
	return &Tunnel{LocalPort: int32(ports[0].Local), Pod: pod, stop: stop}, nil
}

// backingPod picks a running pod of svc and the container port its service
// port targets.
func backingPod(ctx context.Context, client kubernetes.Interface, svc *Service) (string, int32, error) {
	ks, err := client.CoreV1().Services(svc.Namespace).Get(ctx, svc.Name, metav1.GetOptions{})
	if err != nil {
		return "", 0, fmt.Errorf("getting service %s/%s: %w", svc.Namespace, svc.Name, err)
	}
	if len(ks.Spec.Selector) == 0 {
		return "", 0, fmt.Errorf("service %s/%s has no pod selector", svc.Namespace, svc.Name)
	}
	var sp *corev1.ServicePort
	for i := range ks.Spec.Ports {
		if ks.Spec.Ports[i].Port == svc.Port {
			sp = &ks.Spec.Ports[i]
		}
	}
	if sp == nil {
		return "", 0, fmt.Errorf("service %s/%s has no port %d", svc.Namespace, svc.Name, svc.Port)
	}

	sel := metav1.FormatLabelSelector(&metav1.LabelSelector{MatchLabels: ks.Spec.Selector})
	pods, err := client.CoreV1().Pods(svc.Namespace).List(ctx, metav1.ListOptions{LabelSelector: sel})
	if err != nil {
		return "", 0, fmt.Errorf("listing pods of %s/%s: %w", svc.Namespace, svc.Name, err)
	}
	for i := range pods.Items {
		if p := &pods.Items[i]; p.Status.Phase == corev1.PodRunning {
			return p.Name, targetPort(*sp, p), nil
		}
	}
	return "", 0, fmt.Errorf("no running pod behind %s/%s", svc.Namespace, svc.Name)
}

// targetPort resolves a numeric or named target port, defaulting to the
// service port.
func targetPort(sp corev1.ServicePort, pod *corev1.Pod) int32 {
	if v := sp.TargetPort.IntValue(); v != 0 {
		return int32(v)
	}
	if name := sp.TargetPort.String(); name != "" && name != "0" {
		for _, c := range pod.Spec.Containers {
			for _, cp := range c.Ports {
				if cp.Name == name {
					return cp.ContainerPort
				}
			}
		}
	}
	return sp.Port
}
