// Package response writes JSON bodies and the API's error envelope.
package response

import (
	"encoding/json"
	"net/http"
)

const encodeFailure = `{"error":{"code":"INTERNAL_SERVER_ERROR","message":"failed to encode response"}}`

// JSON writes v with status. A nil v writes the status alone. v is encoded
// before the header goes out, so an unencodable value becomes a 500.
func JSON(w http.ResponseWriter, status int, v any) {
	if v == nil {
		w.WriteHeader(status)
		return
	}

	body, err := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(encodeFailure))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// Error writes the error envelope.
func Error(w http.ResponseWriter, status int, code, message, requestID string) {
	ErrorWithDetails(w, status, code, message, nil, requestID)
}

func ErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any, requestID string) {
	JSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: requestID,
	}})
}

// WriteProblem renders err through AsProblem.
func WriteProblem(w http.ResponseWriter, err error, requestID string) {
	p := AsProblem(err)
	ErrorWithDetails(w, p.Status, p.Code, p.Message, p.Details, requestID)
}
