package prometheus

import "github.com/prometheus/client_golang/prometheus"

var (
	registry = prometheus.NewRegistry()
)

// GetRegistry returns the process registry served on the metrics endpoint.
func GetRegistry() *prometheus.Registry {
	return registry
}

func init() {
	registry.MustRegister(
		TaskRuns,
		TaskRunDuration,
		ToolCalls,
		AgentCalls,
		SchedulerScans,
		Tasks,
	)
}
