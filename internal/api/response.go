package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/morgen873/kisson/internal/models"
)

// fallbackError is marshaled once at startup so a failing response body can
// always be replaced with a valid one.
var fallbackError []byte

func init() {
	var err error
	fallbackError, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("api: cannot marshal fallback error response: %v", err))
	}
}

// writeJSONResponse marshals before touching the ResponseWriter, so an
// encoding failure can still downgrade the status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	body, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server writeJSONResponse marshal failed", "error", err)
		body = fallbackError
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Error("Server writeJSONResponse write failed", "error", err)
	}
}
