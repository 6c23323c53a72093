package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// WithCORS lets the listed origins call the API with credentials.
// With no origins h is returned unchanged.
func WithCORS(h http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		return h
	}

	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowCredentials: true,
	}).Handler(h)
}
