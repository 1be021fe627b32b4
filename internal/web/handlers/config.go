package handlers

import (
	"net/http"

	"github.com/kozaktomas/memory-anchor/internal/config"
)

// ConfigHandler exposes the non-secret runtime configuration.
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	MatchThreshold    float64 `json:"match_threshold"`
	ScanIntervalMs    int64   `json:"scan_interval_ms"`
	DegradedAfter     int     `json:"degraded_after"`
	RegistryBackend   string  `json:"registry_backend"`
	CameraConfigured  bool    `json:"camera_configured"`
	EmbeddingService  bool    `json:"embedding_service"`
	ImagesStored      bool    `json:"images_stored"`
	TransitionChannel string  `json:"transition_channel,omitempty"`
}

// Get returns the configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		MatchThreshold:    h.config.Matching.Threshold,
		ScanIntervalMs:    h.config.Scan.Interval.Milliseconds(),
		DegradedAfter:     h.config.Scan.DegradedAfter,
		RegistryBackend:   h.config.Registry.Backend,
		CameraConfigured:  h.config.Camera.HasCamera(),
		EmbeddingService:  h.config.Embedding.URL != "",
		ImagesStored:      h.config.Images.Dir != "",
		TransitionChannel: h.config.Redis.Channel,
	})
}
