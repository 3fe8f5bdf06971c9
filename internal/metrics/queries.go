package metrics

import "fmt"

// PromQL templates. They read cAdvisor container metrics and aggregate per
// (namespace, pod), which is how pods are identified in a loaded model.

// queryMemoryWorkingSet returns the memory working set in bytes.
func queryMemoryWorkingSet() string {
	return `sum by (namespace, pod) (
  container_memory_working_set_bytes{
    container!="",
    container!="POD",
    image!=""
  }
)`
}

// queryMemoryWriteRate approximates the rate memory pages are dirtied, in
// bytes per second, by the positive growth of the working set.
func queryMemoryWriteRate(window string) string {
	return fmt.Sprintf(`clamp_min(
  sum by (namespace, pod) (
    deriv(container_memory_working_set_bytes{
      container!="",
      container!="POD",
      image!=""
    }[%s])
  ),
  0
)`, window)
}
