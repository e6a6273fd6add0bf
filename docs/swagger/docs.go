// Package swagger provides the generated OpenAPI document served under
// /swagger/*.
package swagger

import (
	"github.com/swaggo/swag"
)

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
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {
                        "description": "Credentials",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/LoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Token pair", "schema": {"type": "object"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/users/me": {
            "get": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Describe the authenticated principal",
                "responses": {
                    "200": {"description": "Principal", "schema": {"type": "object"}}
                }
            }
        },
        "/change-requests": {
            "get": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["change-requests"],
                "summary": "List change requests, newest first",
                "parameters": [
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "project", "in": "query"},
                    {"type": "string", "name": "flagKey", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Change requests", "schema": {"type": "array", "items": {"$ref": "#/definitions/ChangeRequest"}}}
                }
            },
            "post": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["change-requests"],
                "summary": "Propose a configuration change",
                "parameters": [
                    {
                        "description": "Proposal",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ChangeRequestRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ChangeRequest"}},
                    "403": {"description": "Permission denied"}
                }
            }
        },
        "/change-requests/{id}": {
            "get": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["change-requests"],
                "summary": "Fetch one change request with its reviews",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Change request", "schema": {"$ref": "#/definitions/ChangeRequest"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/change-requests/{id}/reviews": {
            "post": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["change-requests"],
                "summary": "Submit an approval or rejection",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {
                        "description": "Review",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ReviewRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Updated request", "schema": {"$ref": "#/definitions/ChangeRequest"}},
                    "409": {"description": "Request no longer reviewable"}
                }
            }
        },
        "/change-requests/{id}/apply": {
            "post": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["change-requests"],
                "summary": "Publish the proposed configuration and mark the request applied",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Applied request", "schema": {"$ref": "#/definitions/ChangeRequest"}},
                    "409": {"description": "Illegal transition or lost race"},
                    "502": {"description": "Provider publish failure"}
                }
            }
        },
        "/change-requests/{id}/cancel": {
            "post": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["change-requests"],
                "summary": "Cancel a pending or approved request",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Cancelled request", "schema": {"$ref": "#/definitions/ChangeRequest"}},
                    "409": {"description": "Illegal transition"}
                }
            }
        },
        "/api-keys": {
            "get": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["api-keys"],
                "summary": "List API keys without secrets",
                "responses": {
                    "200": {"description": "Keys", "schema": {"type": "array", "items": {"$ref": "#/definitions/APIKey"}}}
                }
            },
            "post": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["api-keys"],
                "summary": "Issue a new API key",
                "description": "The plaintext key appears in this response only; it is never stored and cannot be retrieved again.",
                "parameters": [
                    {
                        "description": "Key settings",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/APIKeyRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Key record and one-time plaintext", "schema": {"type": "object"}}
                }
            }
        },
        "/api-keys/{id}": {
            "delete": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "tags": ["api-keys"],
                "summary": "Revoke an API key",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "Revoked"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/roles": {
            "get": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["roles"],
                "summary": "List roles",
                "responses": {
                    "200": {"description": "Roles", "schema": {"type": "array", "items": {"$ref": "#/definitions/Role"}}}
                }
            },
            "post": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["roles"],
                "summary": "Create a custom role",
                "parameters": [
                    {
                        "description": "Role definition",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/RoleRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Role"}},
                    "409": {"description": "Name collides with a built-in or existing role"}
                }
            }
        },
        "/roles/{id}": {
            "put": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["roles"],
                "summary": "Update a custom role",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {
                        "description": "Role definition",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/RoleRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Updated", "schema": {"$ref": "#/definitions/Role"}},
                    "409": {"description": "Built-in roles are immutable"}
                }
            },
            "delete": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "tags": ["roles"],
                "summary": "Delete a custom role and its assignments",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Built-in roles are immutable"}
                }
            }
        },
        "/users/{id}/roles": {
            "put": {
                "security": [{"ApiKeyAuth": []}, {"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Replace a user's role set atomically",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {
                        "description": "Role ids",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/AssignRolesRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "User with new roles", "schema": {"type": "object"}},
                    "404": {"description": "User or role not found"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ChangeRequestRequest": {
            "type": "object",
            "required": ["title", "flagKey", "proposedConfig"],
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "project": {"type": "string"},
                "flagKey": {"type": "string"},
                "resourceType": {"type": "string", "default": "flag"},
                "proposedConfig": {"type": "object"}
            }
        },
        "ChangeRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "approved", "rejected", "applied", "cancelled"]},
                "authorId": {"type": "string"},
                "authorEmail": {"type": "string"},
                "project": {"type": "string"},
                "flagKey": {"type": "string"},
                "resourceType": {"type": "string"},
                "currentConfig": {"type": "object"},
                "proposedConfig": {"type": "object"},
                "appliedAt": {"type": "string", "format": "date-time"},
                "appliedBy": {"type": "string"},
                "reviews": {"type": "array", "items": {"$ref": "#/definitions/ChangeRequestReview"}}
            }
        },
        "ChangeRequestReview": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "reviewerId": {"type": "string"},
                "reviewerEmail": {"type": "string"},
                "decision": {"type": "string", "enum": ["approved", "rejected"]},
                "comment": {"type": "string"}
            }
        },
        "ReviewRequest": {
            "type": "object",
            "required": ["decision"],
            "properties": {
                "decision": {"type": "string", "enum": ["approved", "rejected"]},
                "comment": {"type": "string"}
            }
        },
        "APIKeyRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "scopes": {"type": "array", "items": {"type": "string"}},
                "expiresAt": {"type": "string", "format": "date-time"}
            }
        },
        "APIKey": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "prefix": {"type": "string"},
                "scopes": {"type": "array", "items": {"type": "string"}},
                "expiresAt": {"type": "string", "format": "date-time"},
                "lastUsedAt": {"type": "string", "format": "date-time"}
            }
        },
        "RoleRequest": {
            "type": "object",
            "required": ["name", "permissions"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "permissions": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "resource": {"type": "string"},
                            "actions": {"type": "array", "items": {"type": "string"}}
                        }
                    }
                }
            }
        },
        "Role": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "permissions": {"type": "array", "items": {"type": "object"}},
                "isBuiltin": {"type": "boolean"}
            }
        },
        "AssignRolesRequest": {
            "type": "object",
            "required": ["roleIds"],
            "properties": {
                "roleIds": {"type": "array", "items": {"type": "string"}}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "X-API-KEY",
            "in": "header"
        },
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Bearer token from /auth/login"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "FlagForge API",
	Description:      "Git-backed change control for feature flag configuration",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
