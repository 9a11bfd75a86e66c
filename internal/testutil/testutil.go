// Package testutil provides common test utilities and helpers.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrdesigniub9/novoitm2/internal/models"
)

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with an optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// LinearFlow builds an active flow with a trigger followed by the given nodes,
// chained by edges in order.
func LinearFlow(id string, keywords []string, nodes ...models.FlowNode) models.Flow {
	trigger := models.FlowNode{
		ID:   "trigger-1",
		Type: models.NodeTypeTrigger,
		Data: map[string]interface{}{},
	}
	if len(keywords) > 0 {
		kws := make([]interface{}, len(keywords))
		for i, kw := range keywords {
			kws[i] = kw
		}
		trigger.Data["keywords"] = kws
	}

	all := append([]models.FlowNode{trigger}, nodes...)
	edges := make([]models.FlowEdge, 0, len(all)-1)
	for i := 0; i < len(all)-1; i++ {
		edges = append(edges, models.FlowEdge{
			ID:     "edge-" + all[i].ID,
			Source: all[i].ID,
			Target: all[i+1].ID,
		})
	}

	now := time.Now()
	return models.Flow{
		ID:        id,
		Name:      "flow " + id,
		Nodes:     all,
		Edges:     edges,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MessageNode builds a message node with the given id and text.
func MessageNode(id, text string) models.FlowNode {
	return models.FlowNode{
		ID:   id,
		Type: models.NodeTypeMessage,
		Data: map[string]interface{}{"message": text},
	}
}

// MustMarshalJSON marshals an object to JSON and fails the test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails the test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
