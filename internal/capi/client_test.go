package capi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/pixeltracker/capi-relay/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testClient(baseURL string) *Client {
	return New(Config{
		PixelID:       "1234567890",
		AccessToken:   "test-token",
		APIVersion:    "v19.0",
		TestEventCode: "TEST123",
		BaseURL:       baseURL,
	}, testLogger())
}

func TestDeliver_Success(t *testing.T) {
	var gotPath, gotToken string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		json.NewEncoder(w).Encode(map[string]int{"events_received": 1})
	}))
	defer server.Close()

	client := testClient(server.URL)

	result := client.Deliver(context.Background(), domain.TrackingEvent{
		EventName: "Purchase",
		EventTime: 1700000000,
		EventID:   "evt-1",
	})

	if !result.Success {
		t.Fatalf("Deliver failed: %s", result.Message)
	}
	if gotPath != "/v19.0/1234567890/events" {
		t.Errorf("request path = %q, want /v19.0/1234567890/events", gotPath)
	}
	if gotToken != "test-token" {
		t.Errorf("access_token = %q, want test-token", gotToken)
	}

	data, ok := gotBody["data"].([]any)
	if !ok || len(data) != 1 {
		t.Fatalf("wire payload data = %v, want exactly one event", gotBody["data"])
	}
	if gotBody["test_event_code"] != "TEST123" {
		t.Errorf("test_event_code = %v, want TEST123", gotBody["test_event_code"])
	}
}

func TestDeliver_ZeroEventsReceived(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"events_received": 0})
	}))
	defer server.Close()

	result := testClient(server.URL).Deliver(context.Background(), domain.TrackingEvent{
		EventName: "ViewContent",
		EventID:   "evt-zero",
	})

	if result.Success {
		t.Error("Deliver should fail when events_received is 0, even on HTTP 200")
	}
	if result.Message == "" {
		t.Error("failure message should not be empty")
	}
}

func TestDeliver_RemoteErrorPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "Invalid OAuth access token.",
				"code":    190,
				"type":    "OAuthException",
			},
		})
	}))
	defer server.Close()

	result := testClient(server.URL).Deliver(context.Background(), domain.TrackingEvent{
		EventName: "Purchase",
		EventID:   "evt-err",
	})

	if result.Success {
		t.Error("Deliver should fail on HTTP 400")
	}
	if result.Message != "Invalid OAuth access token." {
		t.Errorf("message = %q, want the remote error message", result.Message)
	}
}

func TestDeliver_HTTPErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream broke"))
	}))
	defer server.Close()

	result := testClient(server.URL).Deliver(context.Background(), domain.TrackingEvent{
		EventName: "Purchase",
		EventID:   "evt-500",
	})

	if result.Success {
		t.Error("Deliver should fail on HTTP 500")
	}
	if result.Message != "HTTP 500" {
		t.Errorf("message = %q, want HTTP 500", result.Message)
	}
}

func TestDeliver_MalformedSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	result := testClient(server.URL).Deliver(context.Background(), domain.TrackingEvent{
		EventName: "Purchase",
		EventID:   "evt-garbled",
	})

	if result.Success {
		t.Error("Deliver should fail on a malformed response body")
	}
}

func TestDeliver_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	result := testClient(server.URL).Deliver(context.Background(), domain.TrackingEvent{
		EventName: "Purchase",
		EventID:   "evt-net",
	})

	if result.Success {
		t.Error("Deliver should fail when the connection is refused")
	}
	if result.Message == "" {
		t.Error("network failure message should not be empty")
	}
}

func TestDeliver_Unconfigured(t *testing.T) {
	requestMade := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestMade = true
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL}, testLogger())

	result := client.Deliver(context.Background(), domain.TrackingEvent{EventName: "Purchase"})

	if result.Success {
		t.Error("Deliver should fail without credentials")
	}
	if requestMade {
		t.Error("no request should reach the remote API without credentials")
	}
}

func TestTestConnection_ReusesDeliverPath(t *testing.T) {
	var gotBody struct {
		Data []domain.TrackingEvent `json:"data"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		json.NewEncoder(w).Encode(map[string]int{"events_received": 1})
	}))
	defer server.Close()

	result := testClient(server.URL).TestConnection(context.Background())

	if !result.Success {
		t.Fatalf("TestConnection failed: %s", result.Message)
	}
	if len(gotBody.Data) != 1 {
		t.Fatalf("expected one wire event, got %d", len(gotBody.Data))
	}

	ev := gotBody.Data[0]
	if ev.EventName != "DiagnosticsTest" {
		t.Errorf("event_name = %q, want DiagnosticsTest", ev.EventName)
	}
	if !strings.HasPrefix(ev.EventID, "test_") {
		t.Errorf("event_id = %q, want test_ prefix", ev.EventID)
	}
	if ev.UserData == nil || ev.UserData.ClientIPAddress != "127.0.0.1" {
		t.Errorf("diagnostic user_data should carry the placeholder IP, got %+v", ev.UserData)
	}
}

func TestTestConnection_Unconfigured(t *testing.T) {
	client := New(Config{}, testLogger())

	result := client.TestConnection(context.Background())
	if result.Success {
		t.Error("TestConnection should fail without credentials")
	}
}
