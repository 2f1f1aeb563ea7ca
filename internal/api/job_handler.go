package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/taskflow/taskflow-api/internal/api/shared"
	"github.com/taskflow/taskflow-api/internal/platform/logger"
	"github.com/taskflow/taskflow-api/internal/service/recurring"
	"github.com/taskflow/taskflow-api/internal/service/reminder"
)

// JobHandler exposes the batch jobs to an external trigger such as a
// platform cron. Routes are expected behind the service-role middleware.
type JobHandler struct {
	recurring recurring.Service
	reminders reminder.Service
	clock     func() time.Time
	logger    *slog.Logger
}

// NewJobHandler creates a JobHandler. A nil clock uses time.Now.
func NewJobHandler(
	recurringSvc recurring.Service,
	reminderSvc reminder.Service,
	clock func() time.Time,
	logger *slog.Logger,
) *JobHandler {
	if recurringSvc == nil || reminderSvc == nil {
		panic("job services cannot be nil")
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		recurring: recurringSvc,
		reminders: reminderSvc,
		clock:     clock,
		logger:    logger.With(slog.String("component", "job_handler")),
	}
}

// RunRecurringTasks handles POST /api/jobs/recurring-tasks.
func (h *JobHandler) RunRecurringTasks(w http.ResponseWriter, r *http.Request) {
	now, ok := h.evaluationTime(w, r)
	if !ok {
		return
	}
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	summary, err := h.recurring.ProcessRecurringTasks(r.Context(), now)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("recurring task job completed",
		slog.Int("processed_count", summary.ProcessedCount),
		slog.Int("created", len(summary.CreatedTasks)),
		slog.Int("errors", len(summary.Errors)),
		slog.Bool("partial", summary.Partial))
	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}

// RunReminders handles POST /api/jobs/reminders.
func (h *JobHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	now, ok := h.evaluationTime(w, r)
	if !ok {
		return
	}
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	summary, err := h.reminders.ScanAndNotify(r.Context(), now)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("reminder job completed",
		slog.Int("processed", summary.Processed),
		slog.Int("notifications", len(summary.Notifications)),
		slog.Int("errors", len(summary.Errors)),
		slog.Bool("partial", summary.Partial))
	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}

func (h *JobHandler) evaluationTime(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	var req RunJobRequest
	if err := shared.DecodeJSON(r, &req, true); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return time.Time{}, false
	}
	if req.Now != nil {
		return req.Now.UTC(), true
	}
	return h.clock().UTC(), true
}
