package openapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
)

// Operation represents a single HTTP operation to surface in OpenAPI.
type Operation struct {
	Method      string         `json:"method"`
	Path        string         `json:"path"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Scopes      []string       `json:"x-required-scopes,omitempty"`
	Public      bool           `json:"-"`
	RequestBody any            `json:"requestBody,omitempty"`
	Responses   map[string]any `json:"responses"`
}

// Registry holds the operations the server mounts.
type Registry struct {
	Ops []Operation
}

func NewRegistry() *Registry { return &Registry{Ops: []Operation{}} }

func (r *Registry) Register(op Operation) {
	if op.Method != "" {
		op.Method = strings.ToLower(op.Method)
	}
	r.Ops = append(r.Ops, op)
}

func problem(desc string) map[string]any {
	return map[string]any{
		"description": desc,
		"content":     map[string]any{"application/problem+json": map[string]any{"schema": map[string]any{"$ref": "#/components/schemas/Problem"}}},
	}
}

func jsonBody(desc string, schema map[string]any) map[string]any {
	return map[string]any{
		"description": desc,
		"content":     map[string]any{"application/json": map[string]any{"schema": schema}},
	}
}

// Paths names the configurable install and webhook routes.
type Paths struct {
	Auth     string
	Callback string
	Webhook  string
}

// Default registers every route the app server exposes.
func Default(p Paths) *Registry {
	r := NewRegistry()
	r.Register(Operation{
		Method:  "GET",
		Path:    p.Auth,
		Public:  true,
		Tags:    []string{"install"},
		Summary: "Begin install",
		Responses: map[string]any{
			"302": map[string]any{"description": "Redirect to the provider authorize URL"},
			"400": problem("Invalid shop domain"),
		},
	})
	r.Register(Operation{
		Method:  "GET",
		Path:    p.Callback,
		Public:  true,
		Tags:    []string{"install"},
		Summary: "Complete install",
		Responses: map[string]any{
			"302": map[string]any{"description": "Tenant stored; redirect to the post-install page"},
			"400": problem("Malformed callback"),
			"401": problem("Callback signature or state rejected"),
			"500": problem("Exchange or persistence failed"),
		},
	})
	r.Register(Operation{
		Method:      "POST",
		Path:        p.Webhook,
		Public:      true,
		Tags:        []string{"webhooks"},
		Summary:     "Receive a signed webhook delivery",
		Description: "Body is verified against X-Shopify-Hmac-Sha256 before dispatch by X-Shopify-Topic.",
		Responses: map[string]any{
			"200": map[string]any{"description": "Processed or duplicate"},
			"401": problem("Signature mismatch"),
			"500": problem("Handler failed; provider retries"),
		},
	})
	r.Register(Operation{
		Method:  "GET",
		Path:    "/api/session",
		Tags:    []string{"session"},
		Summary: "Current tenant session",
		Responses: map[string]any{
			"200": jsonBody("Session", map[string]any{"type": "object", "properties": map[string]any{
				"shop":  map[string]any{"type": "string"},
				"scope": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			}}),
			"401": problem("Missing or invalid session"),
		},
	})
	r.Register(Operation{
		Method:  "GET",
		Path:    "/api/products/count",
		Tags:    []string{"products"},
		Scopes:  []string{"read_products"},
		Summary: "Count products",
		Responses: map[string]any{
			"200": jsonBody("Count", map[string]any{"type": "object", "properties": map[string]any{"count": map[string]any{"type": "integer"}}}),
			"401": problem("Missing or invalid session"),
			"502": problem("Business data service unavailable"),
		},
	})
	r.Register(Operation{
		Method:  "POST",
		Path:    "/api/products",
		Tags:    []string{"products"},
		Scopes:  []string{"write_products"},
		Summary: "Create sample products",
		Responses: map[string]any{
			"200": jsonBody("Created", map[string]any{"type": "object", "properties": map[string]any{
				"success": map[string]any{"type": "boolean"},
				"error":   map[string]any{"type": []string{"string", "null"}},
			}}),
			"401": problem("Missing or invalid session"),
			"403": problem("Scope not granted"),
			"500": jsonBody("Creation failed", map[string]any{"type": "object"}),
		},
	})
	return r
}

// Build produces an OpenAPI 3.1 document for the registered operations.
func (r *Registry) Build(serviceName, version string) map[string]any {
	paths := map[string]any{}
	scopes := map[string]string{}
	for _, op := range r.Ops {
		if _, ok := paths[op.Path]; !ok {
			paths[op.Path] = map[string]any{}
		}
		m := map[string]any{
			"summary":   op.Summary,
			"tags":      op.Tags,
			"responses": op.Responses,
		}
		if op.Description != "" {
			m["description"] = op.Description
		}
		if op.Public {
			m["security"] = []map[string]any{}
		}
		if len(op.Scopes) > 0 {
			m["x-required-scopes"] = op.Scopes
			for _, s := range op.Scopes {
				scopes[s] = "Granted at install"
			}
		}
		if op.RequestBody != nil {
			m["requestBody"] = op.RequestBody
		}
		paths[op.Path].(map[string]any)[op.Method] = m
	}
	granted := make([]string, 0, len(scopes))
	for s := range scopes {
		granted = append(granted, s)
	}
	sort.Strings(granted)
	return map[string]any{
		"openapi": "3.1.0",
		"info":    map[string]any{"title": serviceName, "version": version},
		"paths":   paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"sessionToken":  map[string]any{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
				"sessionCookie": map[string]any{"type": "apiKey", "in": "cookie", "name": "appgate_session"},
			},
			"schemas": map[string]any{
				"Problem": map[string]any{"type": "object", "properties": map[string]any{
					"type":   map[string]any{"type": "string"},
					"title":  map[string]any{"type": "string"},
					"status": map[string]any{"type": "integer"},
					"detail": map[string]any{"type": "string"},
				}},
			},
		},
		"security":         []map[string]any{{"sessionToken": []string{}}, {"sessionCookie": []string{}}},
		"x-granted-scopes": granted,
	}
}

// ServeHandler returns an HTTP handler that serves the built OpenAPI JSON.
func (r *Registry) ServeHandler(serviceName, version string) http.HandlerFunc {
	doc := r.Build(serviceName, version)
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_ = json.NewEncoder(w).Encode(doc)
	}
}
