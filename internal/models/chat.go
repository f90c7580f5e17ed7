package models

// ChatRequest is the payload sent to the chatbot endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the chatbot reply. Credits is the remaining balance
// after the current call; it is present on success and on the
// rate-limited error path so the widget can render "resets in 24h"
// messaging.
type ChatResponse struct {
	Response string `json:"response,omitempty"`
	Credits  *int   `json:"credits,omitempty"`
	Error    string `json:"error,omitempty"`
}
