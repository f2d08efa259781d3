package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"unauthorized", errors.New("status code: 401 Unauthorized"), ErrorTypeAuth, false},
		{"rate limited", errors.New("429 Too Many Requests"), ErrorTypeRateLimit, true},
		{"model missing", errors.New("model 'gpt-5x' not found"), ErrorTypeModel, false},
		{"endpoint missing", errors.New("unexpected status 404"), ErrorTypeEndpoint, false},
		{"timeout", errors.New("context deadline exceeded"), ErrorTypeTimeout, true},
		{"refused", errors.New("dial tcp: connection refused"), ErrorTypeConnection, true},
		{"server error", errors.New("503 service unavailable"), ErrorTypeConnection, true},
		{"unknown", errors.New("something odd happened"), ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := ClassifyError(tt.err)
			require.NotNil(t, classified)
			assert.Equal(t, tt.wantType, classified.Type)
			assert.Equal(t, tt.retryable, classified.IsRetryable())
			assert.ErrorIs(t, classified, tt.err)
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil))
}

func TestClassifyError_PassesThroughStructured(t *testing.T) {
	original := &Error{Type: ErrorTypeRateLimit, Message: "rate limited", Retryable: true}
	wrapped := fmt.Errorf("call failed: %w", original)

	classified := ClassifyError(wrapped)
	assert.Same(t, original, classified)
}

func TestError_Format(t *testing.T) {
	err := &Error{Type: ErrorTypeAuth, Message: "authentication failed", Cause: errors.New("401")}
	assert.Equal(t, "auth: authentication failed: 401", err.Error())

	bare := &Error{Type: ErrorTypeUnknown, Message: "request failed"}
	assert.Equal(t, "unknown: request failed", bare.Error())
}
