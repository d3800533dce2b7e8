package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA ADP Grading API",
        "description": "Hierarchical grading: settings inheritance, grade aggregation and report cards",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Settings", "description": "Effective assessment system and term structure of class groups"},
        {"name": "Grades", "description": "Period, term, cumulative and annual grade computation"},
        {"name": "Reports", "description": "Student report cards"},
        {"name": "Classes", "description": "Class creation and grade book initialization"},
        {"name": "Submissions", "description": "Submission grading"}
    ],
    "paths": {
        "/class-groups/{id}/assessment-system": {
            "get": {
                "tags": ["Settings"],
                "summary": "Effective assessment system of a class group",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-groups/{id}/term-structure": {
            "get": {
                "tags": ["Settings"],
                "summary": "Effective term structure of a class group",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-groups/{id}/term-settings": {
            "put": {
                "tags": ["Settings"],
                "summary": "Customize the term structure of a class group",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TermSettingsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades/period": {
            "get": {
                "tags": ["Grades"],
                "summary": "Calculate a period grade",
                "parameters": [
                    {"name": "subjectId", "in": "query", "required": true, "type": "string"},
                    {"name": "periodId", "in": "query", "required": true, "type": "string"},
                    {"name": "studentId", "in": "query", "required": true, "type": "string"},
                    {"name": "requireAll", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades/term": {
            "post": {
                "tags": ["Grades"],
                "summary": "Calculate and store a subject term grade",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TermGradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/gradebooks/{id}/cumulative": {
            "post": {
                "tags": ["Grades"],
                "summary": "Calculate a student's cumulative grade for a term",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CumulativeGradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/gradebooks/{id}/cumulative/batch": {
            "post": {
                "tags": ["Grades"],
                "summary": "Calculate cumulative grades for many students",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchCumulativeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/gradebooks/{id}/students/{studentId}/annual": {
            "get": {
                "tags": ["Grades"],
                "summary": "Term-weighted annual GPA of a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/gradebooks/{id}/students/{studentId}/report-card": {
            "get": {
                "tags": ["Reports"],
                "summary": "Student report card for a term",
                "produces": ["application/json", "text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "termId", "in": "query", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes": {
            "post": {
                "tags": ["Classes"],
                "summary": "Create a class inheriting its class group settings",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateClassRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{id}/gradebook": {
            "post": {
                "tags": ["Classes"],
                "summary": "Create the grade book of an existing class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already initialized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{id}/grade": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Grade a submission and schedule a recompute",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GradeSubmissionRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "TermOverride": {
            "type": "object",
            "properties": {
                "term_id": {"type": "string"},
                "name": {"type": "string"},
                "weight": {"type": "number"},
                "start_date": {"type": "string", "format": "date-time"},
                "end_date": {"type": "string", "format": "date-time"},
                "periods": {"type": "array", "items": {"type": "object"}}
            },
            "required": ["term_id"]
        },
        "TermSettingsRequest": {
            "type": "object",
            "properties": {
                "terms": {"type": "array", "items": {"$ref": "#/definitions/TermOverride"}}
            },
            "required": ["terms"]
        },
        "TermGradeRequest": {
            "type": "object",
            "properties": {
                "subjectId": {"type": "string"},
                "termId": {"type": "string"},
                "studentId": {"type": "string"}
            },
            "required": ["subjectId", "termId", "studentId"]
        },
        "CumulativeGradeRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "termId": {"type": "string"}
            },
            "required": ["studentId", "termId"]
        },
        "BatchCumulativeRequest": {
            "type": "object",
            "properties": {
                "termId": {"type": "string"},
                "studentIds": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["termId"]
        },
        "CreateClassRequest": {
            "type": "object",
            "properties": {
                "classGroupId": {"type": "string"},
                "name": {"type": "string"},
                "academicYear": {"type": "string"}
            },
            "required": ["classGroupId", "name", "academicYear"]
        },
        "GradeSubmissionRequest": {
            "type": "object",
            "properties": {
                "obtainedMarks": {"type": "number"},
                "totalMarks": {"type": "number"},
                "rubricScores": {"type": "object", "additionalProperties": {"type": "number"}}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
