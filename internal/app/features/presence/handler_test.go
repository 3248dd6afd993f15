package presence_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/dalemusser/labflow/internal/app/features/presence"
	"github.com/dalemusser/labflow/internal/app/system/realtime"
	"github.com/dalemusser/labflow/internal/testutil"
)

type stubTransport struct{}

func (stubTransport) Send(context.Context, []byte) error { return nil }
func (stubTransport) IsOpen() bool                       { return true }
func (stubTransport) Close(int, string) error            { return nil }

func TestServeOnline(t *testing.T) {
	reg := realtime.NewRegistry(nil)
	reg.Register(12, stubTransport{}, realtime.Metadata{})
	reg.Register(3, stubTransport{}, realtime.Metadata{})
	reg.Register(12, stubTransport{}, realtime.Metadata{DeviceID: "tablet"})

	rec := testutil.NewRecorder()
	presence.Routes(presence.NewHandler(reg)).ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/online", "", 3))
	rec.AssertStatus(t, http.StatusOK)

	var body struct {
		Users       []int64 `json:"users"`
		Connections int     `json:"connections"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if len(body.Users) != 2 || body.Users[0] != 3 || body.Users[1] != 12 {
		t.Errorf("users = %v, want [3 12]", body.Users)
	}
	if body.Connections != 3 {
		t.Errorf("connections = %d, want 3", body.Connections)
	}
}

func TestServeOnline_NobodyIsEmptyList(t *testing.T) {
	rec := testutil.NewRecorder()
	presence.Routes(presence.NewHandler(realtime.NewRegistry(nil))).ServeHTTP(rec, testutil.NewAuthenticatedRequest("GET", "/online", "", 3))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"users":[]`)
}
