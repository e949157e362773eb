package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ymakhno/confbak/internal/api/response"
	"github.com/ymakhno/confbak/internal/queue"
	"github.com/ymakhno/confbak/internal/scheduler"
	"github.com/ymakhno/confbak/internal/store"
	"github.com/ymakhno/confbak/pkg/models"
)

// BackupHandler exposes the core's two write entry points: the ad-hoc backup
// trigger and the recurring schedule upsert/remove.
type BackupHandler struct {
	store           store.Store
	queue           queue.Queue
	defaultTimezone string
	defaultPattern  string
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(st store.Store, q queue.Queue, defaultTimezone, defaultPattern string) *BackupHandler {
	return &BackupHandler{
		store:           st,
		queue:           q,
		defaultTimezone: defaultTimezone,
		defaultPattern:  defaultPattern,
	}
}

// Trigger enqueues an ad-hoc backup for the device. A run already queued or
// executing for the same device is a conflict, surfaced synchronously — no
// second job is enqueued.
func (h *BackupHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := parseDeviceID(w, r)
	if !ok {
		return
	}

	if _, err := h.store.GetDevice(r.Context(), deviceID); err != nil {
		deviceLookupError(w, err)
		return
	}

	err := h.queue.Enqueue(r.Context(), models.BackupJob{
		Type:     models.JobTypeCreateBackup,
		DeviceID: deviceID,
	})
	if errors.Is(err, queue.ErrConflict) {
		response.Error(w, http.StatusConflict, "CONFLICT", "Backup is already in progress")
		return
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to enqueue backup")
		return
	}

	response.Accepted(w, map[string]string{"message": "Backup process has been triggered"})
}

type upsertScheduleRequest struct {
	Cron     string `json:"cron"`
	Timezone string `json:"timezone,omitempty"`
}

// UpsertSchedule replaces the device's recurring schedule. Calling it twice
// leaves exactly one schedule, using the latest expression.
func (h *BackupHandler) UpsertSchedule(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := parseDeviceID(w, r)
	if !ok {
		return
	}

	var req upsertScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body")
		return
	}
	if req.Cron == "" {
		req.Cron = h.defaultPattern
	}
	if req.Timezone == "" {
		req.Timezone = h.defaultTimezone
	}
	if err := scheduler.Validate(req.Cron, req.Timezone); err != nil {
		response.Error(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if _, err := h.store.GetDevice(r.Context(), deviceID); err != nil {
		deviceLookupError(w, err)
		return
	}

	sched := queue.Schedule{Cron: req.Cron, Timezone: req.Timezone}
	if err := h.queue.UpsertSchedule(r.Context(), deviceID, sched); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store schedule")
		return
	}

	response.JSON(w, map[string]any{"device_id": deviceID, "schedule": sched})
}

// RemoveSchedule deletes the device's recurring schedule. Removing a schedule
// that does not exist is not an error.
func (h *BackupHandler) RemoveSchedule(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := parseDeviceID(w, r)
	if !ok {
		return
	}

	if err := h.queue.RemoveSchedule(r.Context(), deviceID); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove schedule")
		return
	}

	response.JSON(w, map[string]string{"message": "Schedule removed"})
}

func parseDeviceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	deviceID, err := uuid.Parse(chi.URLParam(r, "deviceID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid device id")
		return uuid.Nil, false
	}
	return deviceID, true
}

func deviceLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Device not found")
		return
	}
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load device")
}
