package observability

import (
	"strconv"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine collectors.
type Metrics struct {
	LinesEntered  *prometheus.CounterVec
	EventsFired   *prometheus.CounterVec
	Choices       *prometheus.CounterVec
	Diagnostics   *prometheus.CounterVec
	Finished      *prometheus.CounterVec
	Errors        *prometheus.CounterVec
	EventProgress *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		LinesEntered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cadence_lines_entered_total",
			Help: "Total number of lines presented",
		}, []string{"program"}),
		EventsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cadence_events_fired_total",
			Help: "Total number of events delivered to hosts",
		}, []string{"program", "event"}),
		Choices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cadence_choices_total",
			Help: "Total number of submitted choices by option index",
		}, []string{"program", "option"}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cadence_diagnostics_total",
			Help: "Total number of recoverable diagnostics",
		}, []string{"program", "kind"}),
		Finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cadence_sessions_finished_total",
			Help: "Total number of sessions that reached end",
		}, []string{"program"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cadence_sessions_errored_total",
			Help: "Total number of sessions that hit a fatal script error",
		}, []string{"program"}),
		EventProgress: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cadence_event_lag_progress",
			Help:    "Progress past the threshold at which events were delivered",
			Buckets: []float64{0, 1, 2, 5, 10, 50, 100, 500},
		}, []string{"program"}),
	}

	for _, c := range []prometheus.Collector{
		m.LinesEntered, m.EventsFired, m.Choices, m.Diagnostics, m.Finished, m.Errors, m.EventProgress,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnLineEnter: func(e *domain.LineEvent) {
			m.LinesEntered.WithLabelValues(e.Program).Inc()
		},
		OnEventFired: func(e *domain.FiredEvent) {
			m.EventsFired.WithLabelValues(e.Program, e.Payload.ID).Inc()
			m.EventProgress.WithLabelValues(e.Program).Observe(float64(max(e.Progress-e.Threshold, 0)))
		},
		OnChoice: func(e *domain.ChoiceEvent) {
			m.Choices.WithLabelValues(e.Program, strconv.Itoa(e.Index)).Inc()
		},
		OnDiagnostic: func(e *domain.DiagnosticEvent) {
			m.Diagnostics.WithLabelValues(e.Program, string(e.Diagnostic.Kind)).Inc()
		},
		OnFinish: func(e *domain.HookBase) {
			m.Finished.WithLabelValues(e.Program).Inc()
		},
		OnError: func(e *domain.ErrorEvent) {
			m.Errors.WithLabelValues(e.Program).Inc()
		},
	}
}
