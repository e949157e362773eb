package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ymakhno/confbak/internal/api/response"
	"github.com/ymakhno/confbak/internal/store"
	"github.com/ymakhno/confbak/pkg/models"
)

// VersionHandler exposes the read side of the version history. Completion of
// a backup is observable only here — there is no push notification.
type VersionHandler struct {
	store store.Store
}

// NewVersionHandler creates a new VersionHandler.
func NewVersionHandler(st store.Store) *VersionHandler {
	return &VersionHandler{store: st}
}

// ListByDevice returns the device's successful, non-duplicate versions,
// newest first, paginated.
func (h *VersionHandler) ListByDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := parseDeviceID(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	versions, total, err := h.store.ListVersions(r.Context(), store.VersionFilter{
		DeviceID: deviceID,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list versions")
		return
	}
	if versions == nil {
		versions = []*models.ConfigVersion{}
	}

	response.Collection(w, versions, response.PaginationMeta{
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasNext: page*limit < total,
	})
}

// Get returns one version by id, whatever its state.
func (h *VersionHandler) Get(w http.ResponseWriter, r *http.Request) {
	version, ok := h.loadVersion(w, r, "versionID")
	if !ok {
		return
	}
	response.JSON(w, version)
}

type compareSide struct {
	Content  string    `json:"content"`
	Filename string    `json:"filename"`
	Date     string    `json:"date"`
	DeviceID uuid.UUID `json:"device_id"`
}

// Compare returns the text of two versions side by side for diff rendering.
func (h *VersionHandler) Compare(w http.ResponseWriter, r *http.Request) {
	left, ok := h.loadVersion(w, r, "leftID")
	if !ok {
		return
	}
	right, ok := h.loadVersion(w, r, "rightID")
	if !ok {
		return
	}

	response.JSON(w, map[string]compareSide{
		"left":  toCompareSide(left),
		"right": toCompareSide(right),
	})
}

func toCompareSide(v *models.ConfigVersion) compareSide {
	content := ""
	if v.ConfigText != nil {
		content = *v.ConfigText
	}
	return compareSide{
		Content:  content,
		Filename: fmt.Sprintf("v%d", v.VersionNumber),
		Date:     v.StartedAt.Format("2006-01-02"),
		DeviceID: v.DeviceID,
	}
}

func (h *VersionHandler) loadVersion(w http.ResponseWriter, r *http.Request, param string) (*models.ConfigVersion, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid version id")
		return nil, false
	}

	version, err := h.store.GetVersion(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Config version not found")
		return nil, false
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load version")
		return nil, false
	}
	return version, true
}
