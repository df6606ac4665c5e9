package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/support-chat/internal/model"
)

// ObjectIDParam rejects requests whose URL parameter is not a well-formed
// identifier before they reach a handler. label names the entity in the error.
func ObjectIDParam(param, label string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !model.ValidID(chi.URLParam(r, param)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"code":"invalid_identifier","error":"invalid ` + label + ` ID"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
