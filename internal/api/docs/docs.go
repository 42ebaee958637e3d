// Package docs registers the OpenAPI description of the pkgstatus API with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "pkgstatus"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "https://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/projects/{project}/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Packages of a project with current failures, devel divergence, pending requests and newer upstream versions",
                "produces": ["application/json"],
                "tags": ["Views"],
                "summary": "Project status",
                "parameters": [
                    {"type": "string", "description": "Project name", "name": "project", "in": "path", "required": true},
                    {"type": "string", "default": "All Packages", "description": "Devel project, 'All Packages' or 'No Project'", "name": "filter_devel", "in": "query"},
                    {"type": "boolean", "description": "Hide packages with pending submit requests", "name": "ignore_pending", "in": "query"},
                    {"type": "boolean", "default": true, "description": "Only packages with a current failure", "name": "limit_to_fails", "in": "query"},
                    {"type": "boolean", "default": true, "description": "Report newer upstream versions", "name": "include_versions", "in": "query"},
                    {"type": "string", "description": "CEL expression narrowing the records", "name": "expr", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/projectstatus.View"}},
                    "400": {"description": "Invalid expression", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "503": {"description": "Backend unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "504": {"description": "Backend timeout", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/projects/{project}/monitor": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Package build status by repository and architecture",
                "produces": ["application/json"],
                "tags": ["Views"],
                "summary": "Build monitor",
                "parameters": [
                    {"type": "string", "description": "Project name", "name": "project", "in": "path", "required": true},
                    {"type": "string", "description": "Package name filter, comma separated, '!' negates", "name": "pkgname", "in": "query"},
                    {"type": "string", "description": "Only the last build of each package", "name": "lastbuild", "in": "query"},
                    {"type": "integer", "description": "0 turns the default status, arch and repo selection off", "name": "defaults", "in": "query"},
                    {"type": "integer", "description": "Include (1) or exclude (0) a status; every build status works the same way", "name": "failed", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/monitor.Grid"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "Project not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "503": {"description": "Backend unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "504": {"description": "Backend timeout", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/projects/{project}/summary": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "State of every repository and architecture with status counts",
                "produces": ["application/json"],
                "tags": ["Views"],
                "summary": "Build summary",
                "parameters": [
                    {"type": "string", "description": "Project name", "name": "project", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/monitor.Summary"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "503": {"description": "Backend unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "504": {"description": "Backend timeout", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/projects/{project}/packages/{package}/results": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Last build status of one package in every repository and architecture",
                "produces": ["application/json"],
                "tags": ["Views"],
                "summary": "Package build results",
                "parameters": [
                    {"type": "string", "description": "Project name", "name": "project", "in": "path", "required": true},
                    {"type": "string", "description": "Package name", "name": "package", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/monitor.Grid"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "503": {"description": "Backend unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "504": {"description": "Backend timeout", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/cache/invalidate": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Drop cached entries by key prefix or for a whole project",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Cache"],
                "summary": "Invalidate cache",
                "parameters": [
                    {"description": "Entries to drop", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.InvalidateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.InvalidateResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "500": {"description": "Cache failure", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "api.InvalidateRequest": {
            "type": "object",
            "properties": {"prefix": {"type": "string"}, "project": {"type": "string"}}
        },
        "api.InvalidateResponse": {
            "type": "object",
            "properties": {"removed": {"type": "integer"}}
        },
        "types.PackageRecord": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "failed_comment": {"type": "string"},
                "failed_arch": {"type": "string"},
                "failed_repo": {"type": "string"},
                "first_fail": {"type": "integer"},
                "problems": {"type": "array", "items": {"type": "string"}},
                "requests_from": {"type": "array", "items": {"type": "integer"}},
                "requests_to": {"type": "array", "items": {"type": "integer"}},
                "version": {"type": "string"},
                "upstream_version": {"type": "string"},
                "upstream_url": {"type": "string"},
                "md5": {"type": "string"},
                "devel_project": {"type": "string"},
                "devel_package": {"type": "string"},
                "devel_md5": {"type": "string"}
            }
        },
        "projectstatus.View": {
            "type": "object",
            "properties": {
                "project": {"type": "string"},
                "current_devel_project": {"type": "string"},
                "packages": {"type": "array", "items": {"$ref": "#/definitions/types.PackageRecord"}},
                "devel_projects": {"type": "array", "items": {"type": "string"}}
            }
        },
        "types.PackageBuildStatus": {
            "type": "object",
            "properties": {
                "package": {"type": "string"},
                "code": {"type": "string"},
                "details": {"type": "string"},
                "timestamp": {"type": "integer"}
            }
        },
        "monitor.Grid": {
            "type": "object",
            "properties": {
                "project": {"type": "string"},
                "no_results": {"type": "boolean"},
                "statuses": {"type": "array", "items": {"type": "string"}},
                "available_repositories": {"type": "array", "items": {"type": "string"}},
                "available_architectures": {"type": "array", "items": {"type": "string"}},
                "repositories": {"type": "array", "items": {"type": "string"}},
                "architectures": {"type": "array", "items": {"type": "string"}},
                "packages": {"type": "array", "items": {"type": "string"}},
                "repo_archs": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}},
                "package_status": {"type": "object", "additionalProperties": {"type": "object", "additionalProperties": {"type": "object", "additionalProperties": {"$ref": "#/definitions/types.PackageBuildStatus"}}}},
                "repo_status": {"type": "object", "additionalProperties": {"type": "object", "additionalProperties": {"type": "string"}}}
            }
        },
        "types.StatusCount": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "count": {"type": "integer"}}
        },
        "types.BuildResult": {
            "type": "object",
            "properties": {
                "repository": {"type": "string"},
                "architecture": {"type": "string"},
                "state": {"type": "string"},
                "dirty": {"type": "boolean"},
                "summary": {"type": "array", "items": {"$ref": "#/definitions/types.StatusCount"}}
            }
        },
        "monitor.Summary": {
            "type": "object",
            "properties": {
                "project": {"type": "string"},
                "repo_status": {"type": "object", "additionalProperties": {"type": "object", "additionalProperties": {"type": "string"}}},
                "results": {"type": "array", "items": {"$ref": "#/definitions/types.BuildResult"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Enter your API key (with or without \"Bearer \" prefix)",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "pkgstatus API",
	Description:      "Build status views of a build service: project status, build monitor and build summary.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
