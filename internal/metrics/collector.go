// Package metrics fills VM attributes from monitoring backends and exports
// solve statistics.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/guimove/replanner/internal/model"
)

var (
	ErrPrometheusUnreachable = errors.New("prometheus endpoint unreachable")
	ErrNoMetricsFound        = errors.New("no metrics found for the model's VMs")
)

// Attribute keys written by the collectors. They match those the network
// view reads.
const (
	AttrMemUsed       = "memUsed"
	AttrColdDirtyRate = "coldDirtyRate"
)

// AttributeCollector fills the attributes of the VMs of a model.
type AttributeCollector interface {
	// Collect sets attributes on the VMs of mo. VMs without data are left
	// untouched.
	Collect(ctx context.Context, mo *model.Model, opts CollectOptions) error

	// Ping validates connectivity to the backend.
	Ping(ctx context.Context) error

	// BackendType returns the detected backend type.
	BackendType() string
}

// CollectOptions configures a collection.
type CollectOptions struct {
	// At is the evaluation time. Zero means now.
	At time.Time
	// Window is the range rates are computed over.
	Window time.Duration
}
