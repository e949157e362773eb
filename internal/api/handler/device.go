package handler

import (
	"net/http"

	"github.com/ymakhno/confbak/internal/api/response"
	"github.com/ymakhno/confbak/internal/store"
	"github.com/ymakhno/confbak/pkg/models"
)

// DeviceHandler exposes read-only device access. Device mutation lives in the
// management API, not here.
type DeviceHandler struct {
	store store.Store
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(st store.Store) *DeviceHandler {
	return &DeviceHandler{store: st}
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.store.ListDevices(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list devices")
		return
	}
	if devices == nil {
		devices = []*models.Device{}
	}
	response.JSON(w, devices)
}

func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := parseDeviceID(w, r)
	if !ok {
		return
	}

	device, err := h.store.GetDevice(r.Context(), deviceID)
	if err != nil {
		deviceLookupError(w, err)
		return
	}
	response.JSON(w, device)
}
