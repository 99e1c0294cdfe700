package dto

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jsamuelsen/quote-feed/internal/domain"
)

var (
	// ErrValidation wraps struct tag and Validate() failures.
	ErrValidation = errors.New("validation failed")

	// ErrBinding wraps JSON, query and path decoding failures.
	ErrBinding = errors.New("binding failed")
)

const msgRequired = "this field is required"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator. Field errors are reported under
// their JSON names, so clients see "author" rather than "Author".
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}

			return name
		})

		// Quote ids and cursors are UUIDs; "notempty" rejects whitespace-only
		// quote text.
		_ = validate.RegisterValidation("uuid", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			if v == "" {
				return true
			}

			_, err := uuid.Parse(v)

			return err == nil
		})
		_ = validate.RegisterValidation("notempty", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})

	return validate
}

// Validate runs the struct tags of v.
func Validate(v any) error {
	if err := Validator().Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

// BindAndValidate decodes the JSON body into v and validates it.
func BindAndValidate(c *gin.Context, v any) error {
	return bind(v, c.ShouldBindJSON)
}

// BindQueryAndValidate decodes query parameters into v and validates it.
func BindQueryAndValidate(c *gin.Context, v any) error {
	return bind(v, c.ShouldBindQuery)
}

// BindURIAndValidate decodes path parameters into v and validates it.
func BindURIAndValidate(c *gin.Context, v any) error {
	return bind(v, c.ShouldBindUri)
}

func bind(v any, decode func(any) error) error {
	if err := decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return Validate(v)
}

// AbortWithBindError writes the response for a failed bind or validation:
// 400 with field details for tag failures, the domain message for Validate()
// failures, 413 for oversized bodies and a bare 400 otherwise.
func AbortWithBindError(c *gin.Context, err error) {
	if fields := ValidationErrors(err); len(fields) > 0 {
		AbortWithValidationErrors(c, fields)
		return
	}

	if domain.IsValidation(err) {
		HandleError(c, err)
		return
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		AbortWithCode(c, ErrorCodeTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}

	AbortWithCode(c, ErrorCodeBadRequest, "malformed request")
}

// ValidationErrors maps each failed field to a client-facing message. It is
// empty when err carries no validator errors.
func ValidationErrors(err error) map[string]string {
	fields := make(map[string]string)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = validationMessage(fe)
		}
	}

	return fields
}

// IsValidationError reports whether err carries validator errors.
func IsValidationError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}

func validationMessage(fe validator.FieldError) string {
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return msgRequired
	case "notempty":
		return "must not be empty"
	case "uuid":
		return "must be a valid UUID"
	case "min", "max":
		return minMaxMessage(fe.Tag(), param, fe.Type().Kind())
	case "gte":
		return "must be greater than or equal to " + param
	case "lte":
		return "must be less than or equal to " + param
	case "oneof":
		return "must be one of: " + param
	default:
		return "failed validation: " + fe.Tag()
	}
}

// minMaxMessage counts characters for strings and compares values otherwise.
func minMaxMessage(tag, param string, kind reflect.Kind) string {
	bound := "at least "
	if tag == "max" {
		bound = "at most "
	}

	if kind == reflect.String {
		return "must be " + bound + param + " characters"
	}

	return "must be " + bound + param
}

// Validatable is implemented by requests with rules beyond struct tags,
// such as an update that must change at least one field.
type Validatable interface {
	Validate() error
}

// ValidateAll runs the struct tags, then Validate() when v implements
// Validatable.
func ValidateAll(v any) error {
	if err := Validate(v); err != nil {
		return err
	}

	if vv, ok := v.(Validatable); ok {
		if err := vv.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	return nil
}
