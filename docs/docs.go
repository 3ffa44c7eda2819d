// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with `swag init -g cmd/server/main.go` after changing handler
// annotations.
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
        "/auth/signup": {
            "post": {
                "tags": ["Auth"],
                "summary": "Create an account",
                "operationId": "signup",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CredentialsRequest"}}],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Missing username or password", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Username already exists", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Log in",
                "operationId": "login",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CredentialsRequest"}}],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/threads": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Threads"],
                "summary": "List threads",
                "operationId": "listThreads",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "default": 1, "minimum": 1, "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "maximum": 100, "minimum": 1, "name": "page_size", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Threads"],
                "summary": "Create a thread",
                "operationId": "createThread",
                "produces": ["application/json"],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/threads/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Threads"],
                "summary": "Select a thread",
                "operationId": "getThread",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Thread not found"}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Threads"],
                "summary": "Delete a thread",
                "operationId": "deleteThread",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "boolean", "name": "confirm", "in": "query"}
                ],
                "responses": {"204": {"description": "No Content"}, "409": {"description": "Confirmation required"}}
            }
        },
        "/threads/{id}/topic": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["Threads"],
                "summary": "Rename a thread",
                "operationId": "renameThread",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RenameThreadRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Thread not found"}}
            }
        },
        "/threads/{id}/pin": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["Threads"],
                "summary": "Toggle the pinned flag",
                "operationId": "togglePin",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Thread not found"}}
            }
        },
        "/threads/{id}/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Messages"],
                "summary": "List messages in a thread",
                "operationId": "listMessages",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "default": 1, "minimum": 1, "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "maximum": 100, "minimum": 1, "name": "page_size", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Messages"],
                "summary": "Send a message and get the assistant reply",
                "operationId": "postMessage",
                "consumes": ["application/json", "multipart/form-data"],
                "produces": ["application/json", "text/event-stream"],
                "parameters": [
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "file", "name": "file", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "Stored rows and assistant reply"},
                    "413": {"description": "Upload too large"},
                    "502": {"description": "Completion failed"}
                }
            }
        },
        "/threads/{id}/documents": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Documents"],
                "summary": "List uploaded files of a thread",
                "operationId": "listDocuments",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "handlers.CredentialsRequest": {
            "type": "object",
            "properties": {"username": {"type": "string", "example": "alice"}, "password": {"type": "string", "example": "pw"}}
        },
        "handlers.RenameThreadRequest": {
            "type": "object",
            "properties": {"topic": {"type": "string", "maxLength": 500, "example": "Blockchain explained"}}
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {"request_id": {"type": "string"}, "code": {"type": "string"}, "message": {"type": "string"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "SmartLang Chat API",
	Description:      "Threaded chat with per-thread document knowledge and streamed replies.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
