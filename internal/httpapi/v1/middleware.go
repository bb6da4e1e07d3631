package v1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/govalues/decimal"

	"github.com/tinoosan/fuelsplit/internal/ledger"
)

type ctxKey string

const ctxKeySession ctxKey = "validatedSession"
const ctxKeyReading ctxKey = "validatedReading"
const ctxKeySettings ctxKey = "validatedSettings"

// maxBody caps request bodies; every payload here is a handful of fields.
const maxBody = 1 << 16

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// decodeBody decodes a JSON body strictly and runs struct validation.
// It writes the error response itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if !requireJSON(w, r) {
		return false
	}
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	if err := validate.Struct(dest); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			details := make(map[string]string, len(ve))
			for _, fe := range ve {
				details[fe.Field()] = validationMessage(fe)
			}
			toJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Code: "validation_error", Details: details})
			return false
		}
		badRequest(w, err.Error())
		return false
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}

// validateSession parses POST /session.
func (s *Server) validateSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req createSessionRequest
			if !decodeBody(w, r, &req) {
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeySession, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateReading parses POST /readings and converts the number to whole kilometres.
func (s *Server) validateReading() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postReadingRequest
			if !decodeBody(w, r, &req) {
				return
			}
			km, err := ledger.ParseReading(*req.Reading)
			if err != nil {
				s.writeServiceErr(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyReading, km)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// settingsInput is the validated form of putSettingsRequest.
type settingsInput struct {
	Price decimal.Decimal
	// Start is nil when the caller left the starting odometer unchanged.
	Start *int64
}

// validateSettings parses PUT /settings.
func (s *Server) validateSettings() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req putSettingsRequest
			if !decodeBody(w, r, &req) {
				return
			}
			price, err := decimal.Parse(strings.TrimSpace(req.PricePerKm))
			if err != nil {
				unprocessable(w, "price_per_km must be a decimal number", "invalid_settings")
				return
			}
			in := settingsInput{Price: price}
			if req.StartingOdometer != nil {
				start, err := ledger.ParseReading(*req.StartingOdometer)
				if err != nil {
					unprocessable(w, "starting_odometer must be a finite number >= 0", "invalid_settings")
					return
				}
				in.Start = &start
			}
			ctx := context.WithValue(r.Context(), ctxKeySettings, in)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
