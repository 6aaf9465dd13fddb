package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/asaadkhaja99/rabbit-hole/internal/api/dto"
	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "validation",
			err:         domain.NewValidationError("question", "question is required"),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "question is required",
		},
		{
			name:        "wrapped not found",
			err:         fmt.Errorf("jobs record %q: %w", "lp_1", domain.ErrNotFound),
			wantStatus:  http.StatusNotFound,
			wantMessage: "Not found",
		},
		{
			name:        "queue full",
			err:         fmt.Errorf("failed to dispatch job: %w", domain.ErrQueueFull),
			wantStatus:  http.StatusServiceUnavailable,
			wantMessage: "Too many learning plans in progress, try again later",
		},
		{
			name:        "no image",
			err:         domain.ErrNoImageReturned,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "No image returned from model",
		},
		{
			name:        "anything else",
			err:         errors.New("failed to upload PDF: quota"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "failed to upload PDF: quota",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := classify(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMessage, message)
		})
	}
}

func TestBindError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "first invalid field wins", body: `{"image_base64":"eA=="}`, wantErr: "question is required"},
		{name: "aspect ratio must be positive", body: `{"image_base64":"eA==","question":"q","aspect_ratio":-2}`, wantErr: "aspect_ratio must be a positive number"},
		{name: "undecodable body", body: `[1,2]`, wantErr: invalidBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req dto.EquationAnnotationRequest
			err := c.ShouldBindJSON(&req)
			require.Error(t, err)

			bindError(c, err, invalidBody, annotateMessages)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantErr, body["error"])
		})
	}
}
