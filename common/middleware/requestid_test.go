package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name              string
		existingRequestID string
		expectNewID       bool
	}{
		{
			name:        "generates new request ID when not present",
			expectNewID: true,
		},
		{
			name:              "propagates existing request ID",
			existingRequestID: "existing-req-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/events/api/v1/push", nil)
			if tt.existingRequestID != "" {
				req.Header.Set(HeaderRequestID, tt.existingRequestID)
			}
			w := httptest.NewRecorder()

			RequestID(handler).ServeHTTP(w, req)

			require.NotEmpty(t, captured)
			assert.Equal(t, captured, w.Header().Get(HeaderRequestID))
			if tt.expectNewID {
				_, err := uuid.Parse(captured)
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.existingRequestID, captured)
			}
		})
	}
}

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "msg-42")
	assert.Equal(t, "msg-42", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}
