package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"medialib/services/nmj"
)

type nmjNotifier interface {
	ProbeSettings(ctx context.Context, host string) (nmj.DeviceSettings, bool)
	TestNotify(ctx context.Context, host, database, mount string) bool
}

var _ nmjNotifier = (*nmj.Notifier)(nil)

// NMJHandler serves the Popcorn Hour settings page actions.
type NMJHandler struct {
	Notifier nmjNotifier
}

func NewNMJHandler(n nmjNotifier) *NMJHandler {
	return &NMJHandler{Notifier: n}
}

type nmjDeviceResponse struct {
	Host     string `json:"host"`
	Database string `json:"database"`
	Mount    string `json:"mount"`
}

// Settings reads the NMJ database and mount from the device and saves them.
func (h *NMJHandler) Settings(w http.ResponseWriter, r *http.Request) {
	host := strings.TrimSpace(r.URL.Query().Get("host"))
	if host == "" {
		writeJSONError(w, "host is required", http.StatusBadRequest)
		return
	}

	dev, ok := h.Notifier.ProbeSettings(r.Context(), host)
	if !ok {
		writeJSONError(w, fmt.Sprintf("Failed to retrieve NMJ settings from %s", host), http.StatusBadGateway)
		return
	}
	writeJSON(w, nmjDeviceResponse{Host: dev.Host, Database: dev.Database, Mount: dev.Mount})
}

// Test starts a scan on the device named in the request body.
func (h *NMJHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req nmjDeviceResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Host = strings.TrimSpace(req.Host)
	if req.Host == "" || strings.TrimSpace(req.Database) == "" {
		writeJSONError(w, "host and database are required", http.StatusBadRequest)
		return
	}

	if !h.Notifier.TestNotify(r.Context(), req.Host, req.Database, req.Mount) {
		log.Printf("[nmj] test notice to %s failed", req.Host)
		writeJSONError(w, fmt.Sprintf("Test failed to start the scan update on %s", req.Host), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{"message": fmt.Sprintf("Test notice sent successfully to %s", req.Host)})
}
