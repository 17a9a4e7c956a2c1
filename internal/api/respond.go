package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/modelforge/paramd/internal/params"
	"github.com/modelforge/paramd/internal/resolve"
	"github.com/modelforge/paramd/internal/validate"
)

// errorBody is the uniform error envelope. Code is machine-readable,
// Message is for humans.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

// writeError maps domain errors onto HTTP statuses. Anything it does
// not recognize becomes a 500 and is logged with its full wrap chain.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.Error(err))
	}
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: err.Error()}})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{Code: "bad_request", Message: message}})
}

func classify(err error) (int, string) {
	var (
		ve *validate.ValidationError
		ie *params.InheritedParameterError
		ue *resolve.UpstreamLookupError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.As(err, &ie):
		return http.StatusConflict, "inherited_parameter"
	case params.IsConflict(err):
		return http.StatusConflict, "conflict"
	case params.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &ue):
		return http.StatusBadGateway, "upstream_lookup_failed"
	case resolve.IsCycleGuard(err):
		return http.StatusInternalServerError, "hierarchy_cycle"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decodeBody unmarshals a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return eris.Wrap(err, "api: decode request body")
	}
	return nil
}
