package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type listRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	authDuration   time.Duration
	fetchDuration  time.Duration
	searchProvided bool
	statusFilter   string
	tasksFetched   int
	tasksVisible   int
	errorStage     string
}

func newListRequestMetrics(ctx context.Context, logger *log.Logger) (*listRequestMetrics, context.Context) {
	ctx, span := otel.Tracer("todotask-api/api").Start(ctx, "tasks.list")
	return &listRequestMetrics{logger: logger, span: span, start: time.Now()}, ctx
}

func (m *listRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *listRequestMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *listRequestMetrics) SetFilters(searchProvided bool, statusFilter string) {
	m.searchProvided = searchProvided
	m.statusFilter = statusFilter
}

func (m *listRequestMetrics) SetTasksFetched(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksFetched = count
}

func (m *listRequestMetrics) SetTasksVisible(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksVisible = count
}

func (m *listRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *listRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	if m.span != nil {
		if err != nil {
			m.span.RecordError(err)
		}
		m.span.End()
	}
	if m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":           "/api/tasks",
		"status":          status,
		"total_ms":        durationToMillis(time.Since(m.start)),
		"search_provided": m.searchProvided,
		"status_filter":   m.statusFilter,
		"tasks_fetched":   m.tasksFetched,
		"tasks_visible":   m.tasksVisible,
	}

	if m.authDuration > 0 {
		fields["auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.fetchDuration > 0 {
		fields["fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("tasks.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
