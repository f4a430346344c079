package handler

import (
	"context"
	"net/http"
	"time"

	"invoice-payment-service/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

// HealthCheck pings every dependency. Any failure turns the answer into 503 degraded.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		deps := make(map[string]dependencyStatus, len(checkers))
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(ctx); err != nil {
				deps[checker.Name()] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = dependencyStatus{Status: "healthy"}
			}
		}

		resp := HealthResponse{Status: "healthy", Dependencies: deps}
		httpCode := http.StatusOK
		if !allHealthy {
			resp.Status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, resp)
	}
}
