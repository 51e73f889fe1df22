package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soilfusion/cropadvisor/internal/artifact"
)

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		meta   *artifact.Meta
		loaded bool
	}{
		{"model loaded", &artifact.Meta{Version: "v1"}, true},
		{"no model", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(&mockPredictionService{meta: tt.meta})
			handler.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }

			router := gin.New()
			router.GET("/health", handler.Health)

			w := get(router, "/health")
			require.Equal(t, http.StatusOK, w.Code)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "healthy", resp["status"])
			assert.Equal(t, Version, resp["version"])
			assert.Equal(t, "2024-03-01T09:30:00Z", resp["timestamp"])
			assert.Equal(t, tt.loaded, resp["model_loaded"])
		})
	}
}
