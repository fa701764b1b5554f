// Package docs holds the OpenAPI document served at /swagger/doc.json.
// Regenerate with: swag init -g cmd/server/main.go
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
        "/jobs": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Register a machine for repair",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/httptransport.createJobDTO"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/entity.Job"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/httptransport.apiError"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/jobs/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Get job by id",
                "parameters": [{"type": "string", "description": "job id (uuid)", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/entity.Job"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Edit job details",
                "parameters": [
                    {"type": "string", "description": "job id (uuid)", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/httptransport.updateJobDTO"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/entity.Job"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["jobs"],
                "summary": "Delete a job",
                "parameters": [{"type": "string", "description": "job id (uuid)", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/jobs/{id}/status": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Move a job to another status",
                "parameters": [
                    {"type": "string", "description": "job id (uuid)", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/httptransport.changeStatusDTO"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/entity.Job"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/jobs/{id}/technician": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Assign or reassign the job's technician",
                "parameters": [
                    {"type": "string", "description": "job id (uuid)", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/httptransport.assignTechnicianDTO"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/entity.Job"}}}
            }
        },
        "/jobs/{id}/parts": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["parts"],
                "summary": "List parts withdrawn for the job",
                "parameters": [{"type": "string", "description": "job id (uuid)", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/entity.JobPart"}}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["parts"],
                "summary": "Withdraw a part from stock for the job",
                "parameters": [
                    {"type": "string", "description": "job id (uuid)", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/httptransport.withdrawPartDTO"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/entity.JobPart"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httptransport.apiError"}}
                }
            }
        },
        "/jobs/{id}/parts/{jobPartId}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["parts"],
                "summary": "Return a withdrawn part to stock",
                "parameters": [
                    {"type": "string", "description": "job id (uuid)", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "job part id (uuid)", "name": "jobPartId", "in": "path", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/jobs/{id}/repair-records": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Add a technician's repair note",
                "parameters": [
                    {"type": "string", "description": "job id (uuid)", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/httptransport.repairRecordDTO"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/entity.RepairRecord"}}}
            }
        },
        "/jobs/{id}/images": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["images"],
                "summary": "Attach an uploaded image to the job",
                "parameters": [
                    {"type": "string", "description": "job id (uuid)", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/httptransport.attachImageDTO"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/entity.JobImage"}}}
            }
        },
        "/jobs/{id}/images/{imageId}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["images"],
                "summary": "Remove an image from the job",
                "parameters": [
                    {"type": "string", "description": "job id (uuid)", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "image id (uuid)", "name": "imageId", "in": "path", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/jobs/{id}/activity": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["jobs"],
                "summary": "Job activity log, newest first",
                "parameters": [
                    {"type": "string", "description": "job id (uuid)", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "page size (default 50, max 200)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "entries to skip", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/entity.ActivityLog"}}}}
            }
        }
    },
    "definitions": {
        "entity.Job": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "job_number": {"type": "string"},
                "customer_id": {"type": "string"},
                "miner_model_id": {"type": "string"},
                "serial_number": {"type": "string"},
                "problem_description": {"type": "string"},
                "status": {"type": "string"},
                "priority": {"type": "integer"},
                "technician_id": {"type": "string"},
                "warranty_profile_id": {"type": "string"},
                "received_date": {"type": "string"},
                "estimated_done_date": {"type": "string"},
                "completed_date": {"type": "string"},
                "created_by_id": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "entity.JobPart": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "job_id": {"type": "string"},
                "part_id": {"type": "string"},
                "quantity": {"type": "integer"},
                "unit_price": {"type": "string"},
                "notes": {"type": "string"},
                "created_by": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "entity.ActivityLog": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "job_id": {"type": "string"},
                "user_id": {"type": "string"},
                "action": {"type": "string"},
                "description": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "entity.RepairRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "job_id": {"type": "string"},
                "technician_id": {"type": "string"},
                "description": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "entity.JobImage": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "job_id": {"type": "string"},
                "storage_key": {"type": "string"},
                "caption": {"type": "string"},
                "uploaded_by": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "httptransport.apiError": {
            "type": "object",
            "properties": {
                "kind": {"type": "string"},
                "reason": {"type": "string"},
                "message": {"type": "string"},
                "retryable": {"type": "boolean"}
            }
        },
        "httptransport.createJobDTO": {
            "type": "object",
            "required": ["customer_id", "miner_model_id", "problem_description"],
            "properties": {
                "customer_id": {"type": "string"},
                "miner_model_id": {"type": "string"},
                "problem_description": {"type": "string"},
                "priority": {"type": "integer", "maximum": 2, "minimum": 0},
                "serial_number": {"type": "string"},
                "technician_id": {"type": "string"},
                "warranty_profile_id": {"type": "string"},
                "received_date": {"type": "string"},
                "estimated_done_date": {"type": "string"}
            }
        },
        "httptransport.updateJobDTO": {
            "type": "object",
            "properties": {
                "priority": {"type": "integer", "maximum": 2, "minimum": 0},
                "estimated_done_date": {"type": "string"},
                "problem_description": {"type": "string"}
            }
        },
        "httptransport.changeStatusDTO": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string"},
                "note": {"type": "string"}
            }
        },
        "httptransport.assignTechnicianDTO": {
            "type": "object",
            "required": ["technician_id"],
            "properties": {
                "technician_id": {"type": "string"},
                "note": {"type": "string"}
            }
        },
        "httptransport.withdrawPartDTO": {
            "type": "object",
            "required": ["part_id", "quantity"],
            "properties": {
                "part_id": {"type": "string"},
                "quantity": {"type": "integer", "minimum": 1},
                "unit_price": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "httptransport.repairRecordDTO": {
            "type": "object",
            "required": ["description"],
            "properties": {"description": {"type": "string"}}
        },
        "httptransport.attachImageDTO": {
            "type": "object",
            "required": ["storage_key"],
            "properties": {
                "storage_key": {"type": "string"},
                "caption": {"type": "string"}
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
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Repair Job Service API",
	Description:      "Intake, status tracking, part withdrawals and audit trail for ASIC miner repair jobs.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
