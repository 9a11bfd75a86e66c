package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jrdesigniub9/novoitm2/internal/models"
)

// instancesHandler handles the instance collection (GET, POST /evolution/instances).
func (s *Server) instancesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	switch r.Method {
	case http.MethodGet:
		instances, err := s.st.GetInstances()
		if err != nil {
			slog.Error("Server.instancesHandler: failed to fetch instances", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch instances"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(instances))
	case http.MethodPost:
		s.createInstanceHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	}
}

// createInstanceRequest is the payload for POST /evolution/instances.
type createInstanceRequest struct {
	InstanceName string `json:"instanceName"`
}

func (s *Server) createInstanceHandler(w http.ResponseWriter, r *http.Request) {
	if s.waManager == nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Instance management is not available on this transport"))
		return
	}

	var payload createInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.createInstanceHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if payload.InstanceName == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: instanceName"))
		return
	}

	existing, err := s.st.GetInstanceByName(payload.InstanceName)
	if err != nil {
		slog.Error("Server.createInstanceHandler: failed to check instance", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to check instance"))
		return
	}
	if existing != nil {
		writeJSONResponse(w, http.StatusConflict, models.Error("Instance already exists"))
		return
	}

	instance := models.Instance{
		ID:           uuid.NewString(),
		InstanceName: payload.InstanceName,
		Status:       models.InstanceStatusCreated,
		CreatedAt:    time.Now(),
	}
	if err := s.st.AddInstance(instance); err != nil {
		slog.Error("Server.createInstanceHandler: failed to store instance", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store instance"))
		return
	}

	// Connection runs in the background; the QR code arrives via status updates.
	go s.connectInstance(instance.InstanceName, "")

	slog.Info("Server.createInstanceHandler: instance created", "instance_name", instance.InstanceName)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Instance created successfully", instance))
}

// instanceByNameHandler dispatches /evolution/instances/{name}[/qr|/connect].
func (s *Server) instanceByNameHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	path := strings.TrimPrefix(r.URL.Path, "/evolution/instances/")
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Instance name required"))
		return
	}
	name := segments[0]

	instance, err := s.st.GetInstanceByName(name)
	if err != nil {
		slog.Error("Server.instanceByNameHandler: failed to fetch instance", "error", err, "instance_name", name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch instance"))
		return
	}
	if instance == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Instance not found"))
		return
	}

	if len(segments) == 1 {
		switch r.Method {
		case http.MethodGet:
			writeJSONResponse(w, http.StatusOK, models.Success(instance))
		case http.MethodDelete:
			s.deleteInstanceHandler(w, r, instance)
		default:
			w.Header().Set("Allow", "GET, DELETE")
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
		return
	}

	if len(segments) == 2 {
		switch segments[1] {
		case "qr":
			if r.Method != http.MethodGet {
				w.Header().Set("Allow", http.MethodGet)
				writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
				return
			}
			writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{
				"instanceName": instance.InstanceName,
				"qrCode":       instance.QRCode,
			}))
			return
		case "connect":
			if r.Method != http.MethodPost {
				w.Header().Set("Allow", http.MethodPost)
				writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
				return
			}
			if s.waManager == nil {
				writeJSONResponse(w, http.StatusBadRequest, models.Error("Instance management is not available on this transport"))
				return
			}
			go s.connectInstance(instance.InstanceName, instance.InstanceKey)
			writeJSONResponse(w, http.StatusAccepted, models.Accepted("Instance connection started"))
			return
		}
	}

	writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown instance endpoint"))
}

func (s *Server) deleteInstanceHandler(w http.ResponseWriter, r *http.Request, instance *models.Instance) {
	if s.waManager != nil {
		s.waManager.Disconnect(instance.InstanceName)
	}
	instance.Status = models.InstanceStatusDisconnected
	instance.QRCode = ""
	if err := s.st.SaveInstance(*instance); err != nil {
		slog.Error("Server.deleteInstanceHandler: failed to save instance", "error", err, "instance_name", instance.InstanceName)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update instance"))
		return
	}
	slog.Info("Server.deleteInstanceHandler: instance disconnected", "instance_name", instance.InstanceName)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Instance disconnected", nil))
}

// connectInstance starts the whatsmeow client for an instance and persists the
// device pairing when one is established.
func (s *Server) connectInstance(instanceName, deviceJID string) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultPairingTimeout)
	defer cancel()

	pairedJID, err := s.waManager.Connect(ctx, instanceName, deviceJID)
	if err != nil {
		slog.Error("Server.connectInstance: connection failed", "error", err, "instance_name", instanceName)
		return
	}
	if pairedJID == "" || pairedJID == deviceJID {
		return
	}

	instance, err := s.st.GetInstanceByName(instanceName)
	if err != nil || instance == nil {
		slog.Error("Server.connectInstance: failed to reload instance", "error", err, "instance_name", instanceName)
		return
	}
	instance.InstanceKey = pairedJID
	instance.Status = models.InstanceStatusConnected
	if err := s.st.SaveInstance(*instance); err != nil {
		slog.Error("Server.connectInstance: failed to persist pairing", "error", err, "instance_name", instanceName)
	}
}

// applyStatusUpdate mirrors a provider status event into the instance record.
func (s *Server) applyStatusUpdate(update models.InstanceStatusUpdate) {
	instance, err := s.st.GetInstanceByName(update.InstanceID)
	if err != nil {
		slog.Error("Server.applyStatusUpdate: failed to fetch instance", "error", err, "instance_name", update.InstanceID)
		return
	}
	if instance == nil {
		slog.Debug("Server.applyStatusUpdate: unknown instance", "instance_name", update.InstanceID)
		return
	}

	if update.QRCode != "" {
		instance.QRCode = update.QRCode
	}
	if update.Status != "" {
		instance.Status = update.Status
		if update.Status == models.InstanceStatusConnected {
			instance.QRCode = ""
		}
	}
	if err := s.st.SaveInstance(*instance); err != nil {
		slog.Error("Server.applyStatusUpdate: failed to save instance", "error", err, "instance_name", update.InstanceID)
	}
}
