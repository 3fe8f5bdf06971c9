package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func vectorResponse(w http.ResponseWriter, samples map[string]string) {
	var parts []string
	for key, v := range samples {
		ns, pod, _ := strings.Cut(key, "/")
		parts = append(parts, fmt.Sprintf(`{"metric":{"namespace":%q,"pod":%q},"value":[1700000000,%q]}`, ns, pod, v))
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"success","data":{"resultType":"vector","result":[%s]}}`, strings.Join(parts, ","))
}

func fakePrometheus(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		q := r.Form.Get("query")
		switch {
		case strings.Contains(q, "deriv("):
			vectorResponse(w, map[string]string{"web/a": "2097152"})
		case strings.Contains(q, "container_memory_working_set_bytes"):
			vectorResponse(w, map[string]string{"web/a": "1048576000", "web/gone": "1"})
		default:
			vectorResponse(w, nil)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPrometheusCollector_Collect(t *testing.T) {
	srv := fakePrometheus(t)
	c, err := NewPrometheusCollector(srv.URL, WithTimeout(5*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if c.BackendType() != "prometheus" {
		t.Errorf("backend = %s", c.BackendType())
	}

	mo := testModel(t)
	if err := c.Collect(context.Background(), mo, CollectOptions{Window: 5 * time.Minute}); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got, _ := mo.Attributes.VMInt("web/a", AttrMemUsed); got != 1000 {
		t.Errorf("memUsed = %d, want 1000", got)
	}
	if got, _ := mo.Attributes.VMFloat("web/a", AttrColdDirtyRate); got != 2 {
		t.Errorf("coldDirtyRate = %g, want 2", got)
	}
	if _, ok := mo.Attributes.VM("web/b", AttrMemUsed); ok {
		t.Error("web/b has no samples")
	}
}

func TestPrometheusCollector_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewPrometheusCollector(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, ErrPrometheusUnreachable) {
		t.Errorf("expected ErrPrometheusUnreachable, got %v", err)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, ""},
		{48 * time.Hour, "2d"},
		{3 * time.Hour, "3h"},
		{10 * time.Minute, "10m"},
		{30 * time.Second, "30s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
