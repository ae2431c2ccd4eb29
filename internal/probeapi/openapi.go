package probeapi

import (
	"gatewayprobe/pkg/openapi"
)

const apiVersion = "1.0.0"

func apiDescription() *openapi.Registry {
	reg := openapi.NewRegistry()
	reg.Register(openapi.Operation{
		Method: "GET", Path: "/config", Summary: "Current probe settings, secrets masked",
		Tags:      []string{"config"},
		Responses: map[string]any{"200": openapi.JSONBody("probe settings")},
	})
	reg.Register(openapi.Operation{
		Method: "PUT", Path: "/config", Summary: "Replace probe settings",
		Description: "Secrets sent back as *** keep the stored value.",
		Tags:        []string{"config"},
		RequestBody: openapi.JSONBody("probe settings"),
		Responses: map[string]any{
			"200": openapi.JSONBody("probe settings"),
			"400": openapi.Reply("malformed body"),
		},
	})
	reg.Register(openapi.Operation{
		Method: "GET", Path: "/scenarios", Summary: "List scenario names",
		Tags:      []string{"scenarios"},
		Responses: map[string]any{"200": openapi.JSONBody("scenario names")},
	})
	reg.Register(openapi.Operation{
		Method: "POST", Path: "/scenarios/{kind}", Summary: "Run one scenario and record its result",
		Tags: []string{"scenarios"},
		Parameters: []any{
			map[string]any{"name": "kind", "in": "path", "required": true, "schema": map[string]any{
				"type": "string", "enum": []string{"matched-identity", "impersonation", "unauthenticated"},
			}},
			map[string]any{"name": "role", "in": "query", "schema": map[string]any{
				"type": "string", "enum": []string{"coordinator", "specialist"},
			}},
		},
		Responses: map[string]any{
			"201": openapi.JSONBody("recorded result"),
			"400": openapi.Reply("unknown scenario or role"),
			"412": openapi.Reply("probe settings incomplete; nothing sent or recorded"),
		},
	})
	reg.Register(openapi.Operation{
		Method: "GET", Path: "/results", Summary: "Recorded results, most recent first",
		Tags:      []string{"results"},
		Responses: map[string]any{"200": openapi.JSONBody("results")},
	})
	reg.Register(openapi.Operation{
		Method: "DELETE", Path: "/results", Summary: "Clear recorded results",
		Tags:      []string{"results"},
		Responses: map[string]any{"204": openapi.Reply("cleared")},
	})
	return reg
}
