// Package docs holds the OpenAPI document served at /swagger/*.
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
        "/api/authentication/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["authentication"],
                "summary": "Register an account",
                "parameters": [
                    {"description": "Registration details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.registerRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.registerResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.registerResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.registerResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/api/authentication/register-user": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["authentication"],
                "summary": "Register a User",
                "parameters": [
                    {"description": "Registration details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.fixedRoleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.registerResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.registerResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.registerResponse"}}
                }
            }
        },
        "/api/authentication/create-admin": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["authentication"],
                "summary": "Create an Admin",
                "parameters": [
                    {"description": "Registration details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.fixedRoleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.registerResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.registerResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.registerResponse"}}
                }
            }
        },
        "/api/authentication/create-super-admin": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["authentication"],
                "summary": "Create a SuperAdmin",
                "parameters": [
                    {"description": "Registration details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.fixedRoleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.registerResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.registerResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.registerResponse"}}
                }
            }
        },
        "/api/authentication/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["authentication"],
                "summary": "Login",
                "parameters": [
                    {"description": "Login credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.credentialsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.loginResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.loginResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handler.loginResponse"}}
                }
            }
        },
        "/api/authentication/change-password": {
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["authentication"],
                "summary": "Change password",
                "parameters": [
                    {"description": "Old and new password", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.changePasswordRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.changePasswordResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.changePasswordResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.changePasswordResponse"}}
                }
            }
        },
        "/api/authentication/logout": {
            "delete": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["authentication"],
                "summary": "Logout",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.credentialsRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.resultResponse"}}
                }
            }
        },
        "/api/authentication/delete-account": {
            "delete": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["authentication"],
                "summary": "Delete account",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.credentialsRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.resultResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.resultResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.resultResponse"}}
                }
            }
        },
        "/api/authentication/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["authentication"],
                "summary": "Current identity",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.meResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/api/authentication/audit-events": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["audit"],
                "summary": "List audit events",
                "parameters": [
                    {"type": "string", "description": "Restrict to one account email", "name": "email", "in": "query"},
                    {"type": "integer", "description": "Maximum number of events (1-200, default 50)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.auditListResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.registerRequest": {
            "type": "object",
            "required": ["email", "fullName", "password"],
            "properties": {
                "email": {"type": "string"},
                "username": {"type": "string"},
                "fullName": {"type": "string"},
                "password": {"type": "string"},
                "confirmPassword": {"type": "string"},
                "roles": {"type": "array", "items": {"type": "string", "enum": ["User", "Admin", "SuperAdmin"]}}
            }
        },
        "handler.fixedRoleRequest": {
            "type": "object",
            "required": ["email", "fullName", "password"],
            "properties": {
                "email": {"type": "string"},
                "username": {"type": "string"},
                "fullName": {"type": "string"},
                "password": {"type": "string"},
                "confirmPassword": {"type": "string"}
            }
        },
        "handler.credentialsRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "handler.changePasswordRequest": {
            "type": "object",
            "required": ["email", "oldPassword", "newPassword"],
            "properties": {
                "email": {"type": "string"},
                "oldPassword": {"type": "string"},
                "newPassword": {"type": "string"}
            }
        },
        "handler.resultResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "handler.registerResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "reason": {"type": "string"},
                "userId": {"type": "string"}
            }
        },
        "handler.loginResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "reason": {"type": "string"},
                "userId": {"type": "string"},
                "email": {"type": "string"},
                "accessToken": {"type": "string"},
                "expiresAt": {"type": "string", "format": "date-time"}
            }
        },
        "handler.changePasswordResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "reason": {"type": "string"},
                "accessToken": {"type": "string"},
                "expiresAt": {"type": "string", "format": "date-time"}
            }
        },
        "handler.meResponse": {
            "type": "object",
            "properties": {
                "userId": {"type": "string"},
                "email": {"type": "string"},
                "roles": {"type": "array", "items": {"type": "string"}},
                "tokenId": {"type": "string"},
                "expiresAt": {"type": "string", "format": "date-time"}
            }
        },
        "handler.auditEventResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "type": {"type": "string"},
                "email": {"type": "string"},
                "userId": {"type": "string"},
                "success": {"type": "boolean"},
                "reason": {"type": "string"},
                "detail": {"type": "string"},
                "occurredAt": {"type": "string", "format": "date-time"}
            }
        },
        "handler.auditListResponse": {
            "type": "object",
            "properties": {
                "events": {"type": "array", "items": {"$ref": "#/definitions/handler.auditEventResponse"}},
                "count": {"type": "integer"}
            }
        },
        "handler.errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the access token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Identity Service API",
	Description:      "Registration, login, password management and role assignment over a closed role set.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
