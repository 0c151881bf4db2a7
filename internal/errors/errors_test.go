package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(EngineFailed, "transcription rejected")
	if !strings.Contains(err.Error(), "ENGINE_FAILED") {
		t.Errorf("error string missing code: %q", err.Error())
	}
	if !strings.Contains(err.Error(), "transcription rejected") {
		t.Errorf("error string missing message: %q", err.Error())
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, EngineUnavailable, "engine call failed")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match cause via errors.Is")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error string missing cause: %q", err.Error())
	}
}

func TestIsCode(t *testing.T) {
	err := Newf(LifecycleInvalid, "pause while %s", "stopped")
	if !IsCode(err, LifecycleInvalid) {
		t.Error("IsCode should match")
	}
	if IsCode(err, EngineFailed) {
		t.Error("IsCode should not match different code")
	}
	if IsCode(stderrors.New("plain"), LifecycleInvalid) {
		t.Error("IsCode should not match foreign errors")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{EngineUnavailable, true},
		{EngineTimeout, true},
		{EngineFailed, false},
		{PersistenceFailed, false},
		{LifecycleInvalid, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(New(tt.code, "x")); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.code, got, tt.want)
		}
	}
	if IsRetryable(stderrors.New("plain")) {
		t.Error("foreign errors should not be retryable")
	}
}
