package http

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"dispatch/internal/core/domain/model/kernel"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// requestValidator plugs go-playground/validator into echo. Field names in
// errors are the json names.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return &requestValidator{validate: v}
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// validationDetails keys each failure by its json path below the request
// struct, e.g. "waypoints[0].lat".
func validationDetails(ve validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(ve))
	for _, fe := range ve {
		details[fieldPath(fe)] = validationMessage(fe)
	}
	return details
}

func fieldPath(fe validator.FieldError) string {
	if _, path, ok := strings.Cut(fe.Namespace(), "."); ok {
		return path
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "uuid":
		return "must be a UUID"
	}
	return "is invalid"
}

// bind decodes the body into dest and validates it.
func bind(c echo.Context, dest any) error {
	if err := c.Bind(dest); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(dest)
}

// pathID binds a uuid path parameter the way generated oapi servers do.
func pathID(c echo.Context, name string) (kernel.UUID, error) {
	var raw openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, c.Param(name), &raw,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return kernel.UUID{}, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be a UUID", name)).SetInternal(err)
	}
	return kernel.UUIDFromBytes(raw[:])
}

// optionalID parses a UUID that validation already checked.
func optionalID(s *string) (*kernel.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := kernel.UUIDFromString(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func idString(id *kernel.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
