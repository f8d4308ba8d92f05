package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/chesscast/internal/events"
	"github.com/smazurov/chesscast/internal/process"
)

var (
	processStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "process_starts_total",
		Help:      "Processes spawned, by role",
	}, []string{"role"})

	processExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "process_exits_total",
		Help:      "Processes reaped, by role",
	}, []string{"role"})

	spawnFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "spawn_failures_total",
		Help:      "Executables that could not be launched, by role",
	}, []string{"role"})

	cleanups = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cleanup_total",
		Help:      "Completed cleanup passes",
	})

	environmentLost = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "environment_lost_total",
		Help:      "Runtime files removed by a third party during a run",
	})
)

// Observe subscribes the lifecycle counters to bus. The returned function
// unsubscribes all handlers.
func Observe(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.ProcessStartedEvent) {
			processStarts.WithLabelValues(e.Role).Inc()
		}),
		bus.Subscribe(func(e events.ProcessExitedEvent) {
			processExits.WithLabelValues(e.Role).Inc()
			if e.Role == string(process.RoleConsumer) {
				ResetEncoder()
			}
		}),
		bus.Subscribe(func(e events.ProcessSpawnFailedEvent) {
			spawnFailures.WithLabelValues(e.Role).Inc()
		}),
		bus.Subscribe(func(events.CleanupCompletedEvent) {
			cleanups.Inc()
		}),
		bus.Subscribe(func(events.EnvironmentLostEvent) {
			environmentLost.Inc()
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
