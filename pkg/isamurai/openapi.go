package isamurai

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

//go:embed openapi.yaml
var apiDescription []byte

// APIDescription returns the bundled OpenAPI document describing the
// endpoints this client calls.
func APIDescription() []byte {
	return append([]byte(nil), apiDescription...)
}

// LoadAPIDescription parses and validates the bundled document.
func LoadAPIDescription(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(apiDescription)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}

type responseValidator struct {
	router routers.Router
}

// newResponseValidator rebinds the document's servers to baseURL so routes
// resolve against whatever host the client talks to.
func newResponseValidator(baseURL string) (*responseValidator, error) {
	doc, err := LoadAPIDescription(context.Background())
	if err != nil {
		return nil, err
	}
	doc.Servers = openapi3.Servers{&openapi3.Server{URL: baseURL}}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}
	return &responseValidator{router: router}, nil
}

func (v *responseValidator) validate(ctx context.Context, req *http.Request, resp *http.Response, body []byte) error {
	route, pathParams, err := v.router.FindRoute(req)
	if err != nil {
		return fmt.Errorf("find route: %w", err)
	}

	opts := &openapi3filter.Options{IncludeResponseStatus: true}
	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
			Options:    opts,
		},
		Status:  resp.StatusCode,
		Header:  resp.Header,
		Options: opts,
	}
	input.SetBodyBytes(body)

	return openapi3filter.ValidateResponse(ctx, input)
}
