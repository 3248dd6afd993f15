package userinfo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/labflow/internal/app/features/userinfo"
	"github.com/dalemusser/labflow/internal/app/system/realtime"
	"github.com/dalemusser/labflow/internal/testutil"
)

type stubTransport struct{}

func (stubTransport) Send(context.Context, []byte) error { return nil }
func (stubTransport) IsOpen() bool                       { return true }
func (stubTransport) Close(int, string) error            { return nil }

func newTestHandler(t *testing.T) (*userinfo.Handler, *realtime.Registry) {
	t.Helper()
	reg := realtime.NewRegistry(nil)
	return userinfo.NewHandler(reg), reg
}

func TestServeUserInfo_Unauthenticated(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/me", nil)
	rec := httptest.NewRecorder()

	handler.ServeUserInfo(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	// Check Content-Type
	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", contentType, "application/json")
	}

	var response map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response JSON: %v", err)
	}

	if isAuth, ok := response["isAuthenticated"].(bool); !ok || isAuth {
		t.Errorf("isAuthenticated: got %v, want false", response["isAuthenticated"])
	}
	if _, present := response["userId"]; present {
		t.Error("anonymous response should not carry a user id")
	}
}

func TestServeUserInfo_AuthenticatedOffline(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeUserInfo(rec, testutil.NewAuthenticatedRequest("GET", "/api/me", "", 7))

	var response map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response JSON: %v", err)
	}

	if isAuth, ok := response["isAuthenticated"].(bool); !ok || !isAuth {
		t.Errorf("isAuthenticated: got %v, want true", response["isAuthenticated"])
	}
	if response["userId"] != float64(7) {
		t.Errorf("userId: got %v, want 7", response["userId"])
	}
	if response["name"] != "User 7" {
		t.Errorf("name: got %v, want %q", response["name"], "User 7")
	}
	if response["online"] != false {
		t.Errorf("online: got %v, want false", response["online"])
	}
	if devices, ok := response["devices"].([]any); !ok || len(devices) != 0 {
		t.Errorf("devices: got %v, want empty list", response["devices"])
	}
}

func TestServeUserInfo_ListsDevices(t *testing.T) {
	handler, reg := newTestHandler(t)
	reg.Register(7, stubTransport{}, realtime.Metadata{DeviceID: "bench", DeviceLabel: "Bench PC"})
	reg.Register(7, stubTransport{}, realtime.Metadata{DeviceID: "tablet"})
	reg.Register(8, stubTransport{}, realtime.Metadata{})

	rec := httptest.NewRecorder()
	handler.ServeUserInfo(rec, testutil.NewAuthenticatedRequest("GET", "/api/me", "", 7))

	var response struct {
		Online  bool            `json:"online"`
		Devices []realtime.Info `json:"devices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response JSON: %v", err)
	}
	if !response.Online {
		t.Error("online: got false, want true")
	}
	if len(response.Devices) != 2 {
		t.Fatalf("devices: got %d, want 2", len(response.Devices))
	}
	if response.Devices[0].DeviceID != "bench" || response.Devices[1].DeviceID != "tablet" {
		t.Errorf("devices out of registration order: %+v", response.Devices)
	}
}
