package authserver

import (
	"encoding/json"
	"net/http"
	"time"
)

// Envelope wraps every response body.
type Envelope struct {
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// Msg is the data payload of responses that carry no resource.
type Msg struct {
	Result int    `json:"result"`
	Msg    string `json:"msg"`
}

const (
	messageOK          = "OK"
	messageClientError = "CLIENT_ERROR"
	messageServerError = "SERVER_ERROR"
)

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		Status:    status,
		Message:   message,
		Data:      data,
		Path:      r.URL.Path,
		Timestamp: time.Now().UTC(),
	})
}

func writeOK(w http.ResponseWriter, r *http.Request, data any) {
	writeEnvelope(w, r, http.StatusOK, messageOK, data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	message := messageClientError
	if status >= 500 {
		message = messageServerError
	}
	writeEnvelope(w, r, status, message, Msg{Result: status, Msg: msg})
}
