package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/provider"
	"peer-rental-core/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Kind         string `json:"kind"`
	Message      string `json:"message"`
	Precondition string `json:"precondition,omitempty"`
	Retryable    bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeStatus(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Kind: kind, Message: message})
}

// writeError maps an error onto its HTTP status. Domain kinds keep their
// names in the body so clients can branch on them.
func writeError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		status := http.StatusInternalServerError
		switch de.Kind {
		case domain.KindValidation:
			status = http.StatusBadRequest
		case domain.KindInvalidTransition:
			status = http.StatusConflict
		case domain.KindGatingFailure:
			status = http.StatusPreconditionFailed
		case domain.KindExternalProvider:
			status = http.StatusBadGateway
		case domain.KindConcurrency:
			status = http.StatusConflict
			w.Header().Set("Retry-After", "1")
		case domain.KindNotFound:
			status = http.StatusNotFound
		case domain.KindForbidden:
			status = http.StatusForbidden
		}
		writeJSON(w, status, errorBody{
			Kind:         string(de.Kind),
			Message:      de.Error(),
			Precondition: string(de.Precondition),
			Retryable:    de.Retryable(),
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		writeStatus(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
	case errors.Is(err, provider.ErrBadSignature):
		writeStatus(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
	default:
		logger.Error("Unhandled request error", "error", err)
		writeStatus(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// bind decodes the JSON body into v and runs its validate tags.
func bind(r *http.Request, v any, validate *validator.Validate) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return domain.NewValidationError("decode", "failed to read body")
	}
	return decode(body, v, validate)
}

func decode(body []byte, v any, validate *validator.Validate) error {
	if err := json.Unmarshal(body, v); err != nil {
		return domain.NewValidationError("decode", "invalid JSON")
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag()))
			}
			return domain.NewValidationError("validate", "%s", strings.Join(parts, "; "))
		}
		return domain.NewValidationError("validate", "%v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int32, error) {
	raw := varsOf(r)[name]
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("path", "invalid %s %q", name, raw)
	}
	return int32(id), nil
}

func queryInt(r *http.Request, name string, def int32) int32 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return def
	}
	return int32(v)
}
