package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jrdesigniub9/novoitm2/internal/models"
)

// DefaultResponsesLimit caps GET /ai/responses when no limit is given.
const DefaultResponsesLimit = 50

// aiSettingsHandler handles GET and POST /ai/settings.
func (s *Server) aiSettingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.st.GetAISettings()
		if err != nil {
			slog.Error("Server.aiSettingsHandler: failed to fetch settings", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch AI settings"))
			return
		}
		if settings == nil {
			defaults := models.DefaultAISettings()
			settings = &defaults
		}
		writeJSONResponse(w, http.StatusOK, models.Success(settings))
	case http.MethodPost:
		var settings models.AISettings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			slog.Warn("Server.aiSettingsHandler: failed to decode JSON", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		if settings.ConfidenceThreshold < 0 || settings.ConfidenceThreshold > 1 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("confidenceThreshold must be between 0 and 1"))
			return
		}
		if settings.MaxContextMessages < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("maxContextMessages must not be negative"))
			return
		}
		settings.UpdatedAt = time.Now()
		if err := s.st.SaveAISettings(settings); err != nil {
			slog.Error("Server.aiSettingsHandler: failed to save settings", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save AI settings"))
			return
		}
		slog.Info("Server.aiSettingsHandler: settings updated")
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("AI settings saved", settings))
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	}
}

// aiSessionsHandler handles GET /ai/sessions.
func (s *Server) aiSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	sessions, err := s.st.GetSessions()
	if err != nil {
		slog.Error("Server.aiSessionsHandler: failed to fetch sessions", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch sessions"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessions))
}

// aiResponsesHandler handles GET /ai/responses?limit=N.
func (s *Server) aiResponsesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	limit := DefaultResponsesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	responses, err := s.st.GetAIResponses(limit)
	if err != nil {
		slog.Error("Server.aiResponsesHandler: failed to fetch responses", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch AI responses"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(responses))
}

// aiTestRequest is the payload for POST /ai/test.
type aiTestRequest struct {
	Message string `json:"message"`
}

// aiTestHandler runs the pipeline in dry-run mode: classification and reply
// generation without sessions, delivery, or persistence.
func (s *Server) aiTestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	var payload aiTestRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.aiTestHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if payload.Message == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: message"))
		return
	}

	result := s.responder.Test(r.Context(), payload.Message)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}
