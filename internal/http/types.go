// Package http provides the HTTP API for chartad.
package http

import "github.com/chartalabs/chartad/internal/chat"

// HeaderRetrievedSections carries the sanitized, comma-joined identifiers of
// the sections retrieved for the request.
const HeaderRetrievedSections = "X-Retrieved-Sections"

// ChatRequest is the request body for POST /chat: the full ordered
// conversation, ending with the new user turn.
type ChatRequest struct {
	Messages []chat.Message `json:"messages"`
}

// ErrorResponse is the body of every non-2xx response. Message text is
// generic; upstream provider payloads never appear here.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
