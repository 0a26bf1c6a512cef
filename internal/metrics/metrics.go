package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	runningProcesses = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "stagehand",
		Name:      "running_processes",
		Help:      "Number of supervised processes currently registered per category.",
	}, []string{"category"})

	launchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stagehand",
		Name:      "launches_total",
		Help:      "Total number of successful process launches per category.",
	}, []string{"category"})

	stopsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stagehand",
		Name:      "stops_total",
		Help:      "Total number of caller-initiated stops per category.",
	}, []string{"category"})

	exitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stagehand",
		Name:      "exits_total",
		Help:      "Total number of naturally exited processes by outcome.",
	}, []string{"category", "success"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "stagehand",
		Name:      "build_info",
		Help:      "Build metadata for the running stagehand binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(runningProcesses, launchesTotal, stopsTotal, exitsTotal, buildInfo)
}

// Registry returns the Prometheus registry containing all stagehand metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetRunning records the current number of registered processes in a category.
func SetRunning(category string, count int) {
	if category == "" {
		return
	}
	runningProcesses.WithLabelValues(category).Set(float64(count))
}

// RecordLaunch counts a successful launch.
func RecordLaunch(category string) {
	if category == "" {
		return
	}
	launchesTotal.WithLabelValues(category).Inc()
}

// RecordStop counts a caller-initiated stop.
func RecordStop(category string) {
	if category == "" {
		return
	}
	stopsTotal.WithLabelValues(category).Inc()
}

// RecordExit counts a naturally detected process exit.
func RecordExit(category string, success bool) {
	if category == "" {
		return
	}
	outcome := "false"
	if success {
		outcome = "true"
	}
	exitsTotal.WithLabelValues(category, outcome).Inc()
}

// EmitBuildInfo publishes build metadata gathered from the embedded build
// information. Subsequent calls are no-ops.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
