package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestConfigure_IgnoresZero(t *testing.T) {
	defer Reset()

	Configure(Config{Handshake: 2 * time.Second})

	if Handshake() != 2*time.Second {
		t.Errorf("Handshake() = %v, want 2s", Handshake())
	}
	if Write() != DefaultWrite {
		t.Errorf("Write() = %v, want default %v", Write(), DefaultWrite)
	}
	if Short() != DefaultShort {
		t.Errorf("Short() = %v, want default %v", Short(), DefaultShort)
	}
}

func TestReset(t *testing.T) {
	Configure(Config{Ping: time.Millisecond, Write: time.Millisecond})
	Reset()

	got := Current()
	if got.Ping != DefaultPing || got.Write != DefaultWrite || got.Long != DefaultLong {
		t.Errorf("Current() after Reset = %+v", got)
	}
}

func TestWithTimeout_Expires(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, zap.NewNop(), "test op")
	defer cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context did not expire")
	}
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("ctx.Err() = %v, want DeadlineExceeded", ctx.Err())
	}
}
