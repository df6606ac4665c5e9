package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-chat/internal/middleware"
	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/pkg/logger"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the classified error body with the matching status code.
func writeError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	writeJSON(w, statusFor(kind), &model.ErrorResponse{
		Code:    kind,
		Message: model.MessageOf(err),
	})
}

func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation, model.KindInvalidIdentifier:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.Validationf("invalid request body")
	}
	return nil
}

// fail logs infrastructure failures and writes the error response.
func fail(log *logger.Logger, w http.ResponseWriter, r *http.Request, op string, err error) {
	if model.KindOf(err) == model.KindInternal {
		log.Error(op+" failed",
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, err)
}
