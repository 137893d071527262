package gateway

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSMiddleware allows browser viewers served from another origin.
// WebSocket origins are checked separately by ConnectionConfig.CheckOrigin.
func CORSMiddleware(next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With"},
		MaxAge:         86400,
	}).Handler(next)
}
