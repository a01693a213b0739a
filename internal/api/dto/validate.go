package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

// MsgInvalidPayload is returned when the body is not valid JSON for the request.
const MsgInvalidPayload = "Dữ liệu gửi lên không hợp lệ."

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Bind parses the JSON body into out and runs its validate tags. Failures
// become VALIDATION_FAILED with one reason per field.
func Bind(c *fiber.Ctx, out any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(out); err != nil {
			return apperrors.NewValidationError(MsgInvalidPayload, map[string]any{"body": err.Error()})
		}
	}
	return Validate(out)
}

// Validate runs the validate tags of v.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = reason(fe)
	}
	return apperrors.NewValidationError(MsgInvalidPayload, map[string]any{"fields": fields})
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "must be a valid email"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "invalid"
	}
}
