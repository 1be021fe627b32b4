package handlers

import (
	"log"
	"net/http"
	"time"
)

// Exporter serializes the whole registry in its storage format.
type Exporter interface {
	Export() ([]byte, error)
}

// RegistryHandler serves registry backups.
type RegistryHandler struct {
	exporter Exporter
}

// NewRegistryHandler creates a new registry handler
func NewRegistryHandler(e Exporter) *RegistryHandler {
	return &RegistryHandler{exporter: e}
}

// Export downloads the registry document.
func (h *RegistryHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.exporter.Export()
	if err != nil {
		log.Printf("registry export failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to export registry")
		return
	}
	name := "memory-anchor-" + time.Now().UTC().Format("20060102-150405") + ".json"
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = w.Write(data)
}
