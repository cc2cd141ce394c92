// Package metrics defines the Prometheus collectors exported by the service.
// Every recorder is nil-safe so callers can run without a registry.
package metrics

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
