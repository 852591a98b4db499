package llm

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantType      ErrorType
		wantRetryable bool
	}{
		{"auth", errors.New("status 401 Unauthorized"), ErrorTypeAuth, false},
		{"model_missing", errors.New("model gpt-5-nano not found"), ErrorTypeModel, false},
		{"endpoint_404", errors.New("POST /v1/chat: 404"), ErrorTypeEndpoint, false},
		{"conn_refused", errors.New("dial tcp: connection refused"), ErrorTypeEndpoint, true},
		{"timeout", errors.New("context deadline exceeded"), ErrorTypeEndpoint, true},
		{"rate_limit", errors.New("429 Too Many Requests"), ErrorTypeUnknown, true},
		{"server_error", errors.New("unexpected status 503"), ErrorTypeEndpoint, true},
		{"unknown", errors.New("something odd"), ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got.Type != tt.wantType {
				t.Errorf("type: expected %q, got %q", tt.wantType, got.Type)
			}
			if got.Retryable != tt.wantRetryable {
				t.Errorf("retryable: expected %v, got %v", tt.wantRetryable, got.Retryable)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error must wrap the cause")
			}
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if ClassifyError(nil) != nil {
		t.Error("expected nil for nil input")
	}
}

func TestClassifyError_PassesThroughStructured(t *testing.T) {
	orig := NewError(ErrorTypeAuth, "bad key", false, nil)
	if got := ClassifyError(orig); got != orig {
		t.Error("already-classified errors must pass through unchanged")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewError(ErrorTypeEndpoint, "timeout", true, nil)) {
		t.Error("expected retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors are not retryable LLM errors")
	}
}
