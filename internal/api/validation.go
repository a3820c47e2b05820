package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"huddle/internal/constants"
	"huddle/internal/sanitize"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// sanitizable requests clean their free-text fields before validation.
type sanitizable interface {
	sanitize()
}

// requestError is a rejected request body, tagged with the offending field
// when one is known.
type requestError struct {
	Status  int
	Code    string
	Field   string
	Message string
}

func (e *requestError) Error() string {
	return e.Message
}

func invalidBody() *requestError {
	return &requestError{Status: http.StatusBadRequest, Code: constants.ErrCodeInvalidRequest, Message: "invalid JSON body"}
}

// decodeAndValidate reads a JSON object, drops prototype-pollution keys,
// binds it strictly to dst, sanitizes and validates it.
func decodeAndValidate(body io.Reader, dst any) *requestError {
	raw, err := io.ReadAll(body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return &requestError{
				Status:  http.StatusRequestEntityTooLarge,
				Code:    constants.ErrCodePayloadTooLarge,
				Message: "request body too large",
			}
		}
		return invalidBody()
	}

	var generic any
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&generic); err != nil {
		return invalidBody()
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return invalidBody()
	}
	if _, ok := generic.(map[string]any); !ok {
		return invalidBody()
	}

	cleaned, err := json.Marshal(sanitize.JSON(generic))
	if err != nil {
		return invalidBody()
	}

	strict := json.NewDecoder(bytes.NewReader(cleaned))
	strict.DisallowUnknownFields()
	if err := strict.Decode(dst); err != nil {
		return invalidBody()
	}

	if s, ok := dst.(sanitizable); ok {
		s.sanitize()
	}

	if err := requestValidator.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			first := validationErrors[0]
			return &requestError{
				Status:  http.StatusBadRequest,
				Code:    constants.ErrCodeValidation,
				Field:   first.Field(),
				Message: validationMessage(first),
			}
		}
		return &requestError{Status: http.StatusBadRequest, Code: constants.ErrCodeValidation, Message: "invalid request payload"}
	}

	return nil
}

func validationMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "alphanum":
		return fmt.Sprintf("%s must contain only letters and digits", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("invalid %s", field)
	}
}

func writeRequestError(w http.ResponseWriter, err *requestError) {
	writeFieldError(w, err.Status, err.Code, err.Field, err.Message, nil)
}

func sanitizeOptional(value *string) {
	if value != nil {
		*value = sanitize.Input(*value)
	}
}
