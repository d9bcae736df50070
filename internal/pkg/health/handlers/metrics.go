package handlers

import (
	"net/http"

	"github.com/Vodeneev/matchfeed/internal/pkg/metrics"
)

// HandleMetrics handles /metrics endpoint
func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics.Handler().ServeHTTP(w, r)
}
