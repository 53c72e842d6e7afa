package prometheus

import "github.com/prometheus/client_golang/prometheus"

const namespace = "macmate"

var (
	TaskRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_runs_total",
		Help:      "Scheduled task executions by result.",
	}, []string{"result"})

	TaskRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_run_duration_seconds",
		Help:      "Wall time of one scheduled task execution.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	})

	ToolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "Tool calls dispatched by the model, by tool and result.",
	}, []string{"tool", "result"})

	AgentCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mac_agent_calls_total",
		Help:      "Requests sent to the Mac agent, by action and result.",
	}, []string{"action", "result"})

	SchedulerScans = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_scans_total",
		Help:      "Completed scheduler scans.",
	})

	Tasks = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks",
		Help:      "Stored tasks by state.",
	}, []string{"state"})
)

// ResultLabel maps an outcome to the "result" label value.
func ResultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
