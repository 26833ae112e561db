package http_test

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/pinmap/api"
	handler "github.com/samirrijal/pinmap/internal/adapters/http"
)

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(api.OpenAPI)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}
	return spec
}

// TestOpenAPISpec validates the embedded OpenAPI document.
func TestOpenAPISpec(t *testing.T) {
	spec := loadSpec(t)

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	expectedSchemas := []string{
		"Pin",
		"PinInput",
		"AdminPinRow",
		"Confirmation",
		"TokenPair",
		"APIError",
		"Pagination",
	}
	for _, schema := range expectedSchemas {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	if spec.Info.Title != "pinmap API" {
		t.Errorf("expected title 'pinmap API', got %q", spec.Info.Title)
	}
	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}
}

var fiberParam = regexp.MustCompile(`:([a-zA-Z_]+)`)

// TestOpenAPICoversRoutes checks that every API route the router registers
// is documented with the same method.
func TestOpenAPICoversRoutes(t *testing.T) {
	spec := loadSpec(t)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, &handler.Dependencies{})

	for _, r := range app.GetRoutes(true) {
		if r.Method == fiber.MethodHead || r.Method == "USE" {
			continue
		}
		if !strings.HasPrefix(r.Path, "/v1/") && r.Path != "/graphql" {
			continue
		}
		path := fiberParam.ReplaceAllString(r.Path, "{$1}")
		item := spec.Paths.Find(path)
		if item == nil {
			t.Errorf("route %s %s is not documented", r.Method, path)
			continue
		}
		if item.GetOperation(r.Method) == nil {
			t.Errorf("route %s %s has no documented operation", r.Method, path)
		}
	}
}
