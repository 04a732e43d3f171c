// Package docs is generated by swaggo/swag from the annotations in cmd/server
// and internal/handlers. Regenerate with `swag init -g cmd/server/main.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/tips/outcomes": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Apply (or reverse, optionally deleting) a batch of tips sent by one profile to the running totals",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tips"],
                "summary": "Apply tip outcome",
                "parameters": [
                    {"type": "string", "description": "Key that makes retries safe", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Tip outcome request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.TipOutcomeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "properties": {"success": {"type": "boolean"}, "tipCount": {"type": "integer"}, "direction": {"type": "string"}}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/profiles/{profileId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["profiles"],
                "summary": "Get profile totals",
                "parameters": [{"type": "integer", "description": "Profile ID", "name": "profileId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Profile"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/teams/{teamId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["teams"],
                "summary": "Get team totals",
                "parameters": [{"type": "integer", "description": "Team ID", "name": "teamId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Team"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.TipOutcomeRequest": {
            "type": "object",
            "required": ["tip_ids"],
            "properties": {
                "tip_ids": {"type": "array", "items": {"type": "integer"}},
                "reverse": {"type": "boolean"},
                "destroy": {"type": "boolean"}
            }
        },
        "models.Profile": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "team_id": {"type": "integer"},
                "display_name": {"type": "string"},
                "points_received": {"type": "integer"},
                "jabs_received": {"type": "integer"},
                "points_sent": {"type": "integer"},
                "jabs_sent": {"type": "integer"},
                "balance": {"type": "integer"},
                "last_tip_received_at": {"type": "string"},
                "last_tip_sent_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "models.Team": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "points_sent": {"type": "integer"},
                "jabs_sent": {"type": "integer"},
                "balance": {"type": "integer"},
                "updated_at": {"type": "string"}
            }
        },
        "services.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Tip Ledger API",
	Description:      "Applies and reverses tip batches against profile and team balances",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
