package server

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiYAML []byte

// LoadSwagger parses and validates the embedded
// OpenAPI document.
func LoadSwagger() (*openapi3.T, error) {
	const errCtx = "loading openapi document"

	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(openapiYAML)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return doc, nil
}
