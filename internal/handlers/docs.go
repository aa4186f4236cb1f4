package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

type object = map[string]interface{}

func jsonBody(schema object) object {
	return object{"content": object{"application/json": object{"schema": schema}}}
}

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

func envelope(result object) object {
	return object{
		"type": "object",
		"properties": object{
			"isSuccess": object{"type": "boolean"},
			"code":      object{"type": "string", "example": "COMMON200"},
			"message":   object{"type": "string"},
			"result":    result,
		},
	}
}

func errorResponses(codes ...string) object {
	descriptions := map[string]string{
		"400": "Invalid request or unknown enumeration value",
		"401": "Missing or invalid bearer token, or wrong credentials",
		"403": "Token belongs to another member",
		"404": "Member or forecast not found",
		"409": "Login id already in use",
		"502": "Upstream feed or completion service failed",
	}
	out := object{}
	for _, c := range codes {
		out[c] = object{"description": descriptions[c], "content": object{"application/json": object{"schema": ref("Error")}}}
	}
	return out
}

func merge(a, b object) object {
	for k, v := range b {
		a[k] = v
	}
	return a
}

var memberIDParam = object{
	"name": "memberId", "in": "path", "required": true,
	"schema": object{"type": "integer", "format": "int64"},
}

var bearer = []object{{"bearerAuth": []string{}}}

// DocsHandler serves the API documentation
type DocsHandler struct {
	responder
}

// NewDocsHandler creates a new documentation handler
func NewDocsHandler(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *DocsHandler {
	return &DocsHandler{responder: responder{logger: logger, metrics: metricsCollector}}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the closet-cast API
func (h *DocsHandler) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	nullableNumber := object{"type": "number", "nullable": true}

	spec := object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "closet-cast API",
			"description": "Short-term forecast ingestion and weather-based outfit recommendation",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": object{
			"/api/weather/ingest": object{
				"post": object{
					"summary":     "Run one ingestion pass",
					"description": "Fetches the latest issuance (or base_date/base_time) and merges it into storage",
					"security":    bearer,
					"parameters": []object{
						{"name": "base_date", "in": "query", "schema": object{"type": "string", "example": "20240315"}},
						{"name": "base_time", "in": "query", "schema": object{"type": "string", "example": "0500"}},
					},
					"responses": merge(object{
						"200": merge(object{"description": "Pass statistics"}, jsonBody(ref("IngestionResult"))),
					}, errorResponses("400", "401", "502")),
				},
			},
			"/api/weather/read": object{
				"get": object{
					"summary":     "Read the three-day forecast window",
					"description": "Returns the anchor date and the two following days in order; fails if any day is missing",
					"parameters": []object{
						{"name": "date", "in": "query", "description": "Anchor date (yyyyMMdd), today by default", "schema": object{"type": "string"}},
					},
					"responses": merge(object{
						"200": merge(object{"description": "Three daily forecasts"}, jsonBody(object{"type": "array", "items": ref("DailyForecast")})),
					}, errorResponses("400", "404")),
				},
			},
			"/api/member/signup": object{
				"post": object{
					"summary":     "Register a member",
					"requestBody": jsonBody(ref("SignUpRequest")),
					"responses": merge(object{
						"200": merge(object{"description": "Registered member"}, jsonBody(envelope(ref("Member")))),
					}, errorResponses("400", "409")),
				},
			},
			"/api/member/signin": object{
				"post": object{
					"summary":     "Sign in and receive a bearer token",
					"requestBody": jsonBody(ref("SignInRequest")),
					"responses": merge(object{
						"200": merge(object{"description": "Token"}, jsonBody(envelope(ref("SignInResult")))),
					}, errorResponses("400", "401")),
				},
			},
			"/api/member/read": object{
				"get": object{
					"summary":  "List members",
					"security": bearer,
					"parameters": []object{
						{"name": "page", "in": "query", "schema": object{"type": "integer", "default": 1}},
						{"name": "limit", "in": "query", "schema": object{"type": "integer", "default": 100}},
					},
					"responses": merge(object{
						"200": merge(object{"description": "Members"}, jsonBody(envelope(object{"type": "array", "items": ref("Member")}))),
					}, errorResponses("401")),
				},
			},
			"/api/member/read/{memberId}": object{
				"get": object{
					"summary":    "Read one member",
					"security":   bearer,
					"parameters": []object{memberIDParam},
					"responses": merge(object{
						"200": merge(object{"description": "Member"}, jsonBody(envelope(ref("Member")))),
					}, errorResponses("400", "401", "404")),
				},
			},
			"/api/member/update/{memberId}": object{
				"patch": object{
					"summary":     "Update password, preferences, tendencies or clothes",
					"security":    bearer,
					"parameters":  []object{memberIDParam},
					"requestBody": jsonBody(ref("UpdateMemberRequest")),
					"responses": merge(object{
						"200": merge(object{"description": "Updated member"}, jsonBody(envelope(ref("Member")))),
					}, errorResponses("400", "401", "403", "404")),
				},
			},
			"/api/member/delete/{memberId}": object{
				"delete": object{
					"summary":    "Delete a member",
					"security":   bearer,
					"parameters": []object{memberIDParam},
					"responses": merge(object{
						"200": merge(object{"description": "Deleted member"}, jsonBody(envelope(ref("Member")))),
					}, errorResponses("400", "401", "403", "404")),
				},
			},
			"/api/recommend/{memberId}": object{
				"get": object{
					"summary":     "Recommend today's outfit",
					"description": "Picks one (outer, top, bottom) combination from the member's clothes for today's forecast",
					"security":    bearer,
					"parameters":  []object{memberIDParam},
					"responses": merge(object{
						"200": merge(object{"description": "Outfit"}, jsonBody(envelope(ref("Recommendation")))),
					}, errorResponses("400", "401", "404", "502")),
				},
			},
			"/health": object{
				"get": object{
					"summary": "Health check",
					"responses": object{
						"200": object{"description": "Service and database are up"},
						"503": object{"description": "Database unreachable"},
					},
				},
			},
		},
		"components": object{
			"securitySchemes": object{
				"bearerAuth": object{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
			"schemas": object{
				"Error": envelope(object{"nullable": true}),
				"HourlySample": object{
					"type": "object",
					"properties": object{
						"fcstTime":     object{"type": "string", "example": "0600"},
						"temperature":  object{"type": "number"},
						"apparentTemp": nullableNumber,
					},
				},
				"DailyForecast": object{
					"type": "object",
					"properties": object{
						"date":       object{"type": "string", "example": "20240315"},
						"tmx":        nullableNumber,
						"tmn":        nullableNumber,
						"hourlyList": object{"type": "array", "items": ref("HourlySample")},
					},
				},
				"IngestionResult": object{
					"type": "object",
					"properties": object{
						"baseDate":      object{"type": "string"},
						"baseTime":      object{"type": "string"},
						"daysParsed":    object{"type": "integer"},
						"daysUpserted":  object{"type": "integer"},
						"hourlySamples": object{"type": "integer"},
						"malformed":     object{"type": "boolean"},
						"duration":      object{"type": "integer", "description": "nanoseconds"},
					},
				},
				"SignUpRequest": object{
					"type":     "object",
					"required": []string{"name", "loginId", "password"},
					"properties": object{
						"name":       object{"type": "string"},
						"loginId":    object{"type": "string"},
						"password":   object{"type": "string", "minLength": 8},
						"preference": object{"type": "array", "items": object{"type": "string", "example": "CASUAL"}},
						"tendencies": object{"type": "array", "items": object{"type": "string", "enum": []string{"HOT", "COLD"}}},
					},
				},
				"SignInRequest": object{
					"type":     "object",
					"required": []string{"loginId", "password"},
					"properties": object{
						"loginId":  object{"type": "string"},
						"password": object{"type": "string"},
					},
				},
				"UpdateMemberRequest": object{
					"type": "object",
					"properties": object{
						"currentPassword": object{"type": "string", "description": "Required when newPassword is set"},
						"newPassword":     object{"type": "string"},
						"preference":      object{"type": "array", "items": object{"type": "string"}},
						"tendencies":      object{"type": "array", "items": object{"type": "string"}},
						"clothes":         object{"type": "array", "items": object{"type": "string"}, "description": "At least one outer, one top and one bottom"},
					},
				},
				"Member": object{
					"type": "object",
					"properties": object{
						"memberId":   object{"type": "integer"},
						"name":       object{"type": "string"},
						"loginId":    object{"type": "string"},
						"preference": object{"type": "array", "items": object{"type": "string"}},
						"tendencies": object{"type": "array", "items": object{"type": "string"}},
						"clothes":    object{"type": "array", "items": object{"type": "string"}},
						"createdAt":  object{"type": "string", "format": "date-time"},
						"updatedAt":  object{"type": "string", "format": "date-time"},
					},
				},
				"SignInResult": object{
					"type": "object",
					"properties": object{
						"memberId":  object{"type": "integer"},
						"name":      object{"type": "string"},
						"loginId":   object{"type": "string"},
						"token":     object{"type": "string"},
						"expiresAt": object{"type": "string", "format": "date-time"},
					},
				},
				"Recommendation": object{
					"type": "object",
					"properties": object{
						"outer":  object{"type": "string", "description": "None when no outer layer is needed"},
						"top":    object{"type": "string"},
						"bottom": object{"type": "string"},
					},
				},
			},
		},
	}

	h.sendJSON(w, spec, http.StatusOK)
}

var swaggerPage = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.10.0/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui" data-spec-url="{{.SpecURL}}"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.10.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            const root = document.getElementById('swagger-ui');
            window.ui = SwaggerUIBundle({
                url: root.dataset.specUrl,
                domNode: root,
                deepLinking: true,
                presets: [SwaggerUIBundle.presets.apis]
            });
        };
    </script>
</body>
</html>`))

// SwaggerUI serves the interactive documentation page
func (h *DocsHandler) SwaggerUI(w http.ResponseWriter, r *http.Request) {
	var page bytes.Buffer
	err := swaggerPage.Execute(&page, struct {
		Title   string
		SpecURL string
	}{
		Title:   "closet-cast API Documentation",
		SpecURL: "/api/docs/openapi.json",
	})
	if err != nil {
		h.sendError(w, r, fmt.Errorf("failed to render documentation page: %w", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := page.WriteTo(w); err != nil {
		h.logger.Warn(r.Context(), "[DOCS] Failed to write documentation page", logging.Fields{
			"error": err.Error(),
		})
	}
}

// RegisterRoutes registers the documentation routes
func (h *DocsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/docs/openapi.json", h.OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", h.SwaggerUI).Methods("GET")
}
