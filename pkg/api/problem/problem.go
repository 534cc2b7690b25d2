// Package problem writes RFC 7807 "problem details" responses.
// https://tools.ietf.org/html/rfc7807
package problem

import (
	"encoding/json"
	"net/http"
)

// ContentType is the Content-Type of every problem response.
const ContentType = "application/problem+json"

// Problem is the body of an error response.
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	// Defaults to "about:blank".
	Type string `json:"type,omitempty"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`

	// Status repeats the HTTP status code.
	Status int `json:"status"`

	// Detail explains this occurrence.
	Detail string `json:"detail,omitempty"`

	// Instance identifies the request, usually by its request id.
	Instance string `json:"instance,omitempty"`
}

// Write writes a problem with the standard title for status.
func Write(w http.ResponseWriter, status int, detail string) {
	WriteProblem(w, &Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

// WriteProblem writes p as is.
func WriteProblem(w http.ResponseWriter, p *Problem) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// BadRequest writes a 400 Bad Request problem response.
func BadRequest(w http.ResponseWriter, detail string) {
	Write(w, http.StatusBadRequest, detail)
}

// Unauthorized writes a 401 Unauthorized problem response. Callers add the
// WWW-Authenticate challenge.
func Unauthorized(w http.ResponseWriter, detail string) {
	Write(w, http.StatusUnauthorized, detail)
}

// Forbidden writes a 403 Forbidden problem response.
func Forbidden(w http.ResponseWriter, detail string) {
	Write(w, http.StatusForbidden, detail)
}

// NotFound writes a 404 Not Found problem response.
func NotFound(w http.ResponseWriter, detail string) {
	Write(w, http.StatusNotFound, detail)
}

// Conflict writes a 409 Conflict problem response.
func Conflict(w http.ResponseWriter, detail string) {
	Write(w, http.StatusConflict, detail)
}

// UnprocessableEntity writes a 422 Unprocessable Entity problem response.
func UnprocessableEntity(w http.ResponseWriter, detail string) {
	Write(w, http.StatusUnprocessableEntity, detail)
}

// InternalServerError writes a 500 Internal Server Error problem response.
func InternalServerError(w http.ResponseWriter, detail string) {
	Write(w, http.StatusInternalServerError, detail)
}

// ServiceUnavailable writes a 503 Service Unavailable problem response.
func ServiceUnavailable(w http.ResponseWriter, detail string) {
	Write(w, http.StatusServiceUnavailable, detail)
}
