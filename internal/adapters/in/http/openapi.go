package http

import (
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/swaggo/swag"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// apiContract is the parsed OpenAPI document with a router over its operations.
type apiContract struct {
	doc    *openapi3.T
	router routers.Router
	json   string
}

var loadContract = sync.OnceValues(func() (*apiContract, error) {
	openapi3.DefineStringFormatValidator("uuid", openapi3.NewCallbackValidator(func(s string) error {
		_, err := uuid.Parse(s)
		return err
	}))

	doc, err := openapi3.NewLoader().LoadFromData(openAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("route openapi document: %w", err)
	}
	raw, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}
	return &apiContract{doc: doc, router: router, json: string(raw)}, nil
})

// swaggerDoc hands the contract to the swagger UI served under /swagger/.
type swaggerDoc struct{}

func (swaggerDoc) ReadDoc() string {
	contract, err := loadContract()
	if err != nil {
		return "{}"
	}
	return contract.json
}

func init() {
	swag.Register(swag.Name, swaggerDoc{})
}

// validateParameters checks path and query parameters against the contract
// before a handler runs. Bodies are left to the request validator so field
// errors keep their json paths.
func validateParameters(router routers.Router) echo.MiddlewareFunc {
	options := &openapi3filter.Options{
		ExcludeRequestBody: true,
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			route, params, err := router.FindRoute(req)
			if err != nil {
				return next(c)
			}
			err = openapi3filter.ValidateRequest(req.Context(), &openapi3filter.RequestValidationInput{
				Request:    req,
				PathParams: params,
				Route:      route,
				Options:    options,
			})
			if err != nil {
				return parameterError(err)
			}
			return next(c)
		}
	}
}

func parameterError(err error) error {
	var re *openapi3filter.RequestError
	if !errors.As(err, &re) || re.Parameter == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request does not match the API contract").SetInternal(err)
	}

	name := re.Parameter.Name
	msg := name + " is invalid"
	switch {
	case errors.Is(re.Err, openapi3filter.ErrInvalidRequired), errors.Is(re.Err, openapi3filter.ErrInvalidEmptyValue):
		msg = name + " is required"
	case hasFormat(re.Parameter, "uuid"):
		msg = name + " must be a UUID"
	}
	return echo.NewHTTPError(http.StatusBadRequest, msg).SetInternal(err)
}

func hasFormat(p *openapi3.Parameter, format string) bool {
	return p.Schema != nil && p.Schema.Value != nil && p.Schema.Value.Format == format
}
