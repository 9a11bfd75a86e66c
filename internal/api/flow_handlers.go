package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jrdesigniub9/novoitm2/internal/models"
)

// flowsHandler handles the flow collection (GET, POST /flows).
func (s *Server) flowsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.flowsHandler: processing request", "method", r.Method, "path", r.URL.Path)

	switch r.Method {
	case http.MethodGet:
		flows, err := s.st.GetFlows()
		if err != nil {
			slog.Error("Server.flowsHandler: failed to fetch flows", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch flows"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(flows))
	case http.MethodPost:
		s.createFlowHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	}
}

func (s *Server) createFlowHandler(w http.ResponseWriter, r *http.Request) {
	var payload models.FlowCreate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.createFlowHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	now := time.Now()
	f := models.Flow{
		ID:               uuid.NewString(),
		Name:             payload.Name,
		Description:      payload.Description,
		Nodes:            payload.Nodes,
		Edges:            payload.Edges,
		IsActive:         payload.IsActive,
		SelectedInstance: payload.SelectedInstance,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if f.Nodes == nil {
		f.Nodes = []models.FlowNode{}
	}
	if f.Edges == nil {
		f.Edges = []models.FlowEdge{}
	}

	if err := f.Validate(); err != nil {
		slog.Warn("Server.createFlowHandler: validation failed", "error", err, "name", f.Name)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if err := s.st.AddFlow(f); err != nil {
		slog.Error("Server.createFlowHandler: failed to store flow", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store flow"))
		return
	}

	slog.Info("Server.createFlowHandler: flow created", "flow_id", f.ID, "name", f.Name)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Flow created successfully", f))
}

// flowByIDHandler dispatches /flows/{id} and /flows/{id}/execute and
// /flows/{id}/executions.
func (s *Server) flowByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	path := strings.TrimPrefix(r.URL.Path, "/flows/")
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Flow id required"))
		return
	}
	flowID := segments[0]

	if len(segments) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.getFlowHandler(w, r, flowID)
		case http.MethodPut:
			s.updateFlowHandler(w, r, flowID)
		case http.MethodDelete:
			s.deleteFlowHandler(w, r, flowID)
		default:
			w.Header().Set("Allow", "GET, PUT, DELETE")
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
		return
	}

	if len(segments) == 2 {
		switch segments[1] {
		case "execute":
			if r.Method != http.MethodPost {
				w.Header().Set("Allow", http.MethodPost)
				writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
				return
			}
			s.executeFlowHandler(w, r, flowID)
			return
		case "executions":
			if r.Method != http.MethodGet {
				w.Header().Set("Allow", http.MethodGet)
				writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
				return
			}
			s.listExecutionsHandler(w, r, flowID)
			return
		}
	}

	writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown flow endpoint"))
}

func (s *Server) getFlowHandler(w http.ResponseWriter, r *http.Request, flowID string) {
	f, err := s.st.GetFlow(flowID)
	if err != nil {
		slog.Error("Server.getFlowHandler: failed to fetch flow", "error", err, "flow_id", flowID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch flow"))
		return
	}
	if f == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(f))
}

func (s *Server) updateFlowHandler(w http.ResponseWriter, r *http.Request, flowID string) {
	var payload models.FlowUpdate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.updateFlowHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	f, err := s.st.GetFlow(flowID)
	if err != nil {
		slog.Error("Server.updateFlowHandler: failed to fetch flow", "error", err, "flow_id", flowID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch flow"))
		return
	}
	if f == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
		return
	}

	if payload.Name != nil {
		f.Name = *payload.Name
	}
	if payload.Description != nil {
		f.Description = *payload.Description
	}
	if payload.Nodes != nil {
		f.Nodes = *payload.Nodes
	}
	if payload.Edges != nil {
		f.Edges = *payload.Edges
	}
	if payload.IsActive != nil {
		f.IsActive = *payload.IsActive
	}
	if payload.SelectedInstance != nil {
		f.SelectedInstance = *payload.SelectedInstance
	}
	f.UpdatedAt = time.Now()

	if err := f.Validate(); err != nil {
		slog.Warn("Server.updateFlowHandler: validation failed", "error", err, "flow_id", flowID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if err := s.st.SaveFlow(*f); err != nil {
		slog.Error("Server.updateFlowHandler: failed to save flow", "error", err, "flow_id", flowID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save flow"))
		return
	}

	slog.Info("Server.updateFlowHandler: flow updated", "flow_id", flowID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Flow updated successfully", f))
}

func (s *Server) deleteFlowHandler(w http.ResponseWriter, r *http.Request, flowID string) {
	if err := s.st.DeleteFlow(flowID); err != nil {
		if errors.Is(err, models.ErrFlowNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
			return
		}
		slog.Error("Server.deleteFlowHandler: failed to delete flow", "error", err, "flow_id", flowID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete flow"))
		return
	}
	slog.Info("Server.deleteFlowHandler: flow deleted", "flow_id", flowID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Flow deleted successfully", nil))
}

// executeFlowRequest is the payload for POST /flows/{id}/execute. instanceId
// is optional and only consulted when the flow is not bound to an instance.
type executeFlowRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	InstanceID  string `json:"instanceId"`
}

// executeFlowHandler runs a flow synchronously and returns its execution
// record. The request blocks until the traversal finishes.
func (s *Server) executeFlowHandler(w http.ResponseWriter, r *http.Request, flowID string) {
	var payload executeFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.executeFlowHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	recipient, err := s.msgService.ValidateAndCanonicalizeRecipient(payload.PhoneNumber)
	if err != nil {
		slog.Warn("Server.executeFlowHandler: recipient validation failed", "error", err, "original", payload.PhoneNumber)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	exec, err := s.engine.Execute(r.Context(), flowID, recipient, payload.InstanceID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrFlowNotFound):
			writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
		case errors.Is(err, models.ErrFlowInactive):
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Flow is not active"))
		default:
			slog.Error("Server.executeFlowHandler: execution failed", "error", err, "flow_id", flowID)
			// exec carries the failed record when traversal started
			writeJSONResponse(w, http.StatusInternalServerError, models.ErrorWithData("Flow execution failed", exec))
		}
		return
	}

	slog.Info("Server.executeFlowHandler: flow executed", "flow_id", flowID, "execution_id", exec.ID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Flow executed successfully", exec))
}

func (s *Server) listExecutionsHandler(w http.ResponseWriter, r *http.Request, flowID string) {
	execs, err := s.st.GetExecutions(flowID)
	if err != nil {
		slog.Error("Server.listExecutionsHandler: failed to fetch executions", "error", err, "flow_id", flowID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch executions"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(execs))
}

// executionHandler handles GET /executions/{id}.
func (s *Server) executionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	execID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/executions/"), "/")
	if execID == "" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Execution id required"))
		return
	}

	exec, err := s.st.GetExecution(execID)
	if err != nil {
		slog.Error("Server.executionHandler: failed to fetch execution", "error", err, "execution_id", execID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch execution"))
		return
	}
	if exec == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Execution not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(exec))
}
