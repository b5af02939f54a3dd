package contract

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi/portrait-api.yaml
var embeddedDocument []byte

// generateOperation is the operation whose multipart schema defines the
// styling options.
const generateOperation = "generatePortrait"

// Contract is the parsed API description of the portrait service.
type Contract struct {
	doc        *openapi3.T
	operations map[string]*openapi3.Operation
	catalog    Catalog
}

// Load parses the embedded API description.
func Load(ctx context.Context) (*Contract, error) {
	return LoadFromData(ctx, embeddedDocument)
}

// EmbeddedDocument returns a copy of the bundled OpenAPI document.
func EmbeddedDocument() []byte {
	return append([]byte(nil), embeddedDocument...)
}

// LoadFromData parses and validates an OpenAPI document describing the
// portrait service.
func LoadFromData(ctx context.Context, data []byte) (*Contract, error) {
	if ctx == nil {
		return nil, errors.New("contract: context is required")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("contract: document is empty")
	}

	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("contract: load document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("contract: validate document: %w", err)
	}

	operations := make(map[string]*openapi3.Operation)
	if doc.Paths != nil {
		for _, item := range doc.Paths.Map() {
			if item == nil {
				continue
			}
			for _, op := range item.Operations() {
				if op == nil || op.OperationID == "" {
					continue
				}
				if _, exists := operations[op.OperationID]; exists {
					return nil, fmt.Errorf("contract: duplicate operation %q", op.OperationID)
				}
				operations[op.OperationID] = op
			}
		}
	}

	catalog, err := buildCatalog(operations[generateOperation])
	if err != nil {
		return nil, err
	}

	return &Contract{doc: doc, operations: operations, catalog: catalog}, nil
}

// Catalog returns the styling options accepted by the generation endpoint.
func (c *Contract) Catalog() Catalog {
	if c == nil {
		return Catalog{}
	}
	return c.catalog
}

// HasOperation reports whether the document declares the operation.
func (c *Contract) HasOperation(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.operations[id]
	return ok
}

// ValidateResponse checks a decoded JSON body against the response schema
// declared for the operation and status code, falling back to the default
// response. Responses without a JSON schema are accepted as-is.
func (c *Contract) ValidateResponse(operationID string, status int, body map[string]any) error {
	if c == nil {
		return nil
	}
	op, ok := c.operations[operationID]
	if !ok {
		return fmt.Errorf("contract: unknown operation %q", operationID)
	}
	if op.Responses == nil {
		return nil
	}

	ref := op.Responses.Status(status)
	if ref == nil {
		ref = op.Responses.Default()
	}
	if ref == nil || ref.Value == nil {
		return fmt.Errorf("contract: %s declares no response for status %d", operationID, status)
	}

	media := ref.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return nil
	}

	if err := media.Schema.Value.VisitJSON(toJSONValue(body)); err != nil {
		return fmt.Errorf("contract: %s response (status %d): %w", operationID, status, err)
	}
	return nil
}

func toJSONValue(body map[string]any) any {
	if body == nil {
		return map[string]any{}
	}
	return body
}

func buildCatalog(op *openapi3.Operation) (Catalog, error) {
	if op == nil {
		return Catalog{}, fmt.Errorf("contract: operation %q is not declared", generateOperation)
	}
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return Catalog{}, fmt.Errorf("contract: %s has no request body", generateOperation)
	}
	media := op.RequestBody.Value.Content.Get("multipart/form-data")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return Catalog{}, fmt.Errorf("contract: %s does not accept multipart/form-data", generateOperation)
	}
	schema := media.Schema.Value

	required := make(map[string]int, len(schema.Required))
	for i, name := range schema.Required {
		required[name] = i
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		ri, iok := required[names[i]]
		rj, jok := required[names[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return names[i] < names[j]
		}
	})

	var choices []Choice
	for _, name := range names {
		prop := schema.Properties[name]
		if prop == nil || prop.Value == nil || len(prop.Value.Enum) == 0 {
			continue
		}
		choice := Choice{Field: name}
		for _, v := range prop.Value.Enum {
			choice.Values = append(choice.Values, fmt.Sprint(v))
		}
		if prop.Value.Default != nil {
			choice.Default = fmt.Sprint(prop.Value.Default)
		}
		_, choice.Required = required[name]
		choices = append(choices, choice)
	}

	return Catalog{choices: choices}, nil
}
