package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/guimove/replanner/internal/model"
)

// StaticCollector loads VM attributes from a JSON file of the form
// {"vms": {"<vm>": {"<key>": <value>}}}. Used for offline runs and tests.
type StaticCollector struct {
	filePath string
	data     *staticData
}

type staticData struct {
	VMs map[model.VM]map[string]any `json:"vms"`
}

// NewStaticCollector creates a collector that reads from a JSON file.
func NewStaticCollector(filePath string) *StaticCollector {
	return &StaticCollector{filePath: filePath}
}

// NewStaticCollectorFromValues creates a collector over in-memory values.
func NewStaticCollectorFromValues(vms map[model.VM]map[string]any) *StaticCollector {
	return &StaticCollector{data: &staticData{VMs: vms}}
}

// Ping checks that the file exists.
func (s *StaticCollector) Ping(ctx context.Context) error {
	if s.data != nil {
		return nil
	}
	if _, err := os.Stat(s.filePath); err != nil {
		return fmt.Errorf("static metrics file: %w", err)
	}
	return nil
}

func (s *StaticCollector) BackendType() string { return "static" }

// Collect copies the values of the VMs known to mo.
func (s *StaticCollector) Collect(ctx context.Context, mo *model.Model, _ CollectOptions) error {
	if s.data == nil {
		raw, err := os.ReadFile(s.filePath)
		if err != nil {
			return fmt.Errorf("reading static metrics file: %w", err)
		}
		var d staticData
		if err := json.Unmarshal(raw, &d); err != nil {
			return fmt.Errorf("parsing static metrics file: %w", err)
		}
		s.data = &d
	}

	found := 0
	for vm, kv := range s.data.VMs {
		if !mo.Mapping.Contains(vm) {
			continue
		}
		found++
		for k, v := range kv {
			mo.Attributes.PutVM(vm, k, v)
		}
	}
	if found == 0 {
		return ErrNoMetricsFound
	}
	return nil
}
