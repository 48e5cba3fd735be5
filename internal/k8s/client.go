// Package k8s wraps the Kubernetes control-plane operations the actuator
// needs: pod termination and network isolation.
package k8s

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps Kubernetes client-go for remediation calls. Outbound calls
// carry a deadline and an optional token-bucket rate limit.
type Client struct {
	clientset kubernetes.Interface

	// Timeout for outbound K8s API calls; 0 means request context only.
	timeout time.Duration

	// limiter optionally rate-limits outbound API calls. Nil = no limit.
	limiter *rate.Limiter
}

// NewClient builds a Kubernetes client, trying in-cluster config first and
// falling back to the kubeconfig at kubeconfigPath (or ~/.kube/config).
func NewClient(kubeconfigPath string, timeout time.Duration) (*Client, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		if kubeconfigPath == "" {
			homeDir, _ := os.UserHomeDir()
			if homeDir != "" {
				kubeconfigPath = filepath.Join(homeDir, ".kube", "config")
			}
		}
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to build config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return &Client{clientset: clientset, timeout: timeout}, nil
}

// SetLimiter sets a token-bucket rate limiter for outbound API calls.
func (c *Client) SetLimiter(l *rate.Limiter) {
	c.limiter = l
}

// Available probes the API server; the actuator switches to simulated mode
// when this fails at startup.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.clientset.Discovery().ServerVersion()
	return err == nil
}

// DeletePod deletes the named pod with grace period zero.
func (c *Client) DeletePod(ctx context.Context, namespace, name string) error {
	if err := c.waitRateLimit(ctx); err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	grace := int64(0)
	err := c.clientset.CoreV1().Pods(namespace).Delete(ctx, name, metav1.DeleteOptions{
		GracePeriodSeconds: &grace,
	})
	if err != nil {
		return fmt.Errorf("failed to delete pod %s/%s: %w", namespace, name, err)
	}
	return nil
}

// IsolatePod creates a NetworkPolicy selecting the pod by label with both
// policy types and no allow rules, denying all ingress and egress traffic
// for the selected pods.
func (c *Client) IsolatePod(ctx context.Context, namespace, name string) error {
	if err := c.waitRateLimit(ctx); err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	policy := &networkingv1.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("%s-isolate", name),
			Namespace: namespace,
		},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{
				MatchLabels: map[string]string{"pod-name": name},
			},
			PolicyTypes: []networkingv1.PolicyType{
				networkingv1.PolicyTypeIngress,
				networkingv1.PolicyTypeEgress,
			},
			// No ingress/egress rules: all traffic to and from the
			// selected pods is denied.
		},
	}

	_, err := c.clientset.NetworkingV1().NetworkPolicies(namespace).Create(ctx, policy, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("failed to isolate pod %s/%s: %w", namespace, name, err)
	}
	return nil
}

func (c *Client) waitRateLimit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return ctx, func() {}
}
