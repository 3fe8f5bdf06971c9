package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/guimove/replanner/internal/model"
)

func testModel(t *testing.T) *model.Model {
	t.Helper()
	mo := model.New()
	mo.Mapping.AddOnlineNode("n1")
	if err := mo.Mapping.AddRunningVM("web/a", "n1"); err != nil {
		t.Fatal(err)
	}
	mo.Mapping.AddReadyVM("web/b")
	return mo
}

func TestStaticCollector_FromValues(t *testing.T) {
	collector := NewStaticCollectorFromValues(map[model.VM]map[string]any{
		"web/a":   {AttrMemUsed: 512},
		"web/old": {AttrMemUsed: 64},
	})
	if err := collector.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if collector.BackendType() != "static" {
		t.Errorf("expected backend type 'static', got %q", collector.BackendType())
	}

	mo := testModel(t)
	if err := collector.Collect(context.Background(), mo, CollectOptions{}); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got, _ := mo.Attributes.VMInt("web/a", AttrMemUsed); got != 512 {
		t.Errorf("memUsed = %d, want 512", got)
	}
	if mo.Mapping.Contains("web/old") {
		t.Error("unknown VMs must not be added")
	}
}

func TestStaticCollector_FromFile(t *testing.T) {
	content := `{"vms": {"web/a": {"memUsed": 2048, "coldDirtyRate": 1.5}}}`
	path := filepath.Join(t.TempDir(), "attrs.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	collector := NewStaticCollector(path)
	if err := collector.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	mo := testModel(t)
	if err := collector.Collect(context.Background(), mo, CollectOptions{}); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got, _ := mo.Attributes.VMInt("web/a", AttrMemUsed); got != 2048 {
		t.Errorf("memUsed = %d, want 2048", got)
	}
	if got, _ := mo.Attributes.VMFloat("web/a", AttrColdDirtyRate); got != 1.5 {
		t.Errorf("coldDirtyRate = %g, want 1.5", got)
	}
}

func TestStaticCollector_MissingFile(t *testing.T) {
	collector := NewStaticCollector("/nonexistent/attrs.json")
	if err := collector.Ping(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStaticCollector_NoMatchingVM(t *testing.T) {
	collector := NewStaticCollectorFromValues(map[model.VM]map[string]any{"other": {AttrMemUsed: 1}})
	err := collector.Collect(context.Background(), testModel(t), CollectOptions{})
	if !errors.Is(err, ErrNoMetricsFound) {
		t.Errorf("expected ErrNoMetricsFound, got %v", err)
	}
}
