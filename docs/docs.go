// Package docs holds the Swagger document served at /docs. Keep it in step
// with the @Router annotations in internal/handlers.
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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.HealthResponse"}}
                }
            }
        },
        "/api/schemas": {
            "get": {
                "produces": ["application/json"],
                "tags": ["schemas"],
                "summary": "List file schemas",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/types.FileSchema"}}}
                }
            }
        },
        "/api/schemas/{category}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["schemas"],
                "summary": "Get file schema",
                "parameters": [
                    {"enum": ["transaction", "product_lookup", "causal_lookup"], "type": "string", "description": "File category", "name": "category", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.FileSchema"}},
                    "404": {"description": "Unknown category", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/files/validate": {
            "post": {
                "description": "Parses a CSV or XLSX file and checks it against the schema of its category. The category is detected from the header row when omitted.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["files"],
                "summary": "Validate a data file",
                "parameters": [
                    {"type": "file", "description": "Data file", "name": "file", "in": "formData", "required": true},
                    {"enum": ["transaction", "product_lookup", "causal_lookup"], "type": "string", "description": "File category", "name": "category", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ValidateResponse"}},
                    "400": {"description": "Bad request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "422": {"description": "File could not be parsed", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/datasets": {
            "post": {
                "description": "Validates the three files locally, then creates the dataset and uploads them in order. Progress is streamed as \"progress\" events followed by one \"result\" event.",
                "consumes": ["multipart/form-data"],
                "produces": ["text/event-stream"],
                "tags": ["datasets"],
                "summary": "Create a dataset",
                "parameters": [
                    {"type": "string", "description": "Dataset name", "name": "name", "in": "formData", "required": true},
                    {"type": "string", "description": "Dataset description", "name": "description", "in": "formData"},
                    {"type": "file", "description": "Transaction file", "name": "transaction", "in": "formData"},
                    {"type": "file", "description": "Product lookup file", "name": "product_lookup", "in": "formData"},
                    {"type": "file", "description": "Causal lookup file", "name": "causal_lookup", "in": "formData"},
                    {"type": "file", "description": "ZIP holding all three files", "name": "bundle", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ingestion.Progress"}},
                    "400": {"description": "Bad request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Not authenticated", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/handlers.PrecheckFailedResponse"}}
                }
            }
        },
        "/api/datasets/{id}/resume": {
            "post": {
                "description": "Skips the steps already completed and uploads the remaining files. Only files for remaining steps are required.",
                "consumes": ["multipart/form-data"],
                "produces": ["text/event-stream"],
                "tags": ["datasets"],
                "summary": "Resume a dataset import",
                "parameters": [
                    {"type": "string", "description": "Dataset ID", "name": "id", "in": "path", "required": true},
                    {"type": "file", "description": "Transaction file", "name": "transaction", "in": "formData"},
                    {"type": "file", "description": "Product lookup file", "name": "product_lookup", "in": "formData"},
                    {"type": "file", "description": "Causal lookup file", "name": "causal_lookup", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ingestion.Progress"}},
                    "400": {"description": "Missing file", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Dataset not found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "409": {"description": "Import already complete", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "handlers.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "checkpoints": {"type": "string"}
            }
        },
        "handlers.ValidateResponse": {
            "type": "object",
            "properties": {
                "category": {"type": "string"},
                "file": {"type": "string"},
                "headers": {"type": "array", "items": {"type": "string"}},
                "rows": {"type": "integer"},
                "truncated": {"type": "boolean"},
                "result": {"$ref": "#/definitions/types.ValidationResult"}
            }
        },
        "handlers.PrecheckFailedResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "reports": {"type": "array", "items": {"$ref": "#/definitions/ingestion.FileReport"}}
            }
        },
        "ingestion.FileReport": {
            "type": "object",
            "properties": {
                "category": {"type": "string"},
                "file": {"type": "string"},
                "rows": {"type": "integer"},
                "truncated": {"type": "boolean"},
                "parseError": {"type": "string"},
                "result": {"$ref": "#/definitions/types.ValidationResult"}
            }
        },
        "ingestion.Progress": {
            "type": "object",
            "properties": {
                "step": {"type": "string", "enum": ["creating_master", "uploading_transaction", "uploading_product_lookup", "uploading_causal_lookup", "completed", "failed"]},
                "progress": {"type": "integer"},
                "message": {"type": "string"},
                "datasetId": {"type": "string"},
                "warning": {"type": "string"}
            }
        },
        "types.ColumnSpec": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "expectedKind": {"type": "string", "enum": ["string", "number", "date"]},
                "description": {"type": "string"},
                "nonNegative": {"type": "boolean"}
            }
        },
        "types.FileSchema": {
            "type": "object",
            "properties": {
                "fileType": {"type": "string"},
                "requiredColumns": {"type": "array", "items": {"$ref": "#/definitions/types.ColumnSpec"}}
            }
        },
        "types.ValidationIssue": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["missing_column", "invalid_data_type", "empty_required_field", "other"]},
                "column": {"type": "string"},
                "rowIndex": {"type": "integer"},
                "value": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "types.ValidationResult": {
            "type": "object",
            "properties": {
                "isValid": {"type": "boolean"},
                "errors": {"type": "array", "items": {"$ref": "#/definitions/types.ValidationIssue"}},
                "warnings": {"type": "array", "items": {"$ref": "#/definitions/types.ValidationIssue"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Analytics Service API",
	Description:      "Validates retail data files and creates analytics datasets on the backend.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
