package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type mutationMetrics struct {
	logger         *log.Logger
	event          string
	start          time.Time
	applyDuration  time.Duration
	fanoutDuration time.Duration
	recipients     int
	taskID         string
	errorStage     string
}

func newMutationMetrics(logger *log.Logger, event string) *mutationMetrics {
	return &mutationMetrics{
		logger: logger,
		event:  event,
		start:  time.Now(),
	}
}

func (m *mutationMetrics) ObserveApply(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.applyDuration = duration
}

func (m *mutationMetrics) ObserveFanout(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fanoutDuration = duration
}

func (m *mutationMetrics) SetRecipients(count int) {
	if count < 0 {
		count = 0
	}
	m.recipients = count
}

func (m *mutationMetrics) SetTaskID(id string) {
	m.taskID = id
}

func (m *mutationMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *mutationMetrics) Log(err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"event":      m.event,
		"total_ms":   durationToMillis(time.Since(m.start)),
		"recipients": m.recipients,
	}
	if m.taskID != "" {
		fields["task_id"] = m.taskID
	}
	if m.applyDuration > 0 {
		fields["apply_ms"] = durationToMillis(m.applyDuration)
	}
	if m.fanoutDuration > 0 {
		fields["fanout_ms"] = durationToMillis(m.fanoutDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("task.mutation.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
