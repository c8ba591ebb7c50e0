// events.go — Lifecycle event payloads forwarded by the extension.
// One frame per webRequest lifecycle callback: start, headers sent,
// completed, errored. The extension delivers frames over the WebSocket
// channel or batched via POST /events; both decode into these types.
package types

import "encoding/json"

// Event kinds carried in EventFrame.Event.
const (
	EventStart       = "start"
	EventHeadersSent = "headers_sent"
	EventCompleted   = "completed"
	EventErrored     = "errored"
)

// EventFrame wraps one lifecycle event on the wire.
type EventFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// HeaderPair is a single name/value header as reported by the browser.
// Headers arrive as ordered pairs, not a map: duplicate names are legal
// and later pairs overwrite earlier ones when merged into a record.
type HeaderPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RequestBodyPayload is the raw request body as the webRequest API
// reports it: either base64 raw chunks or parsed form data.
type RequestBodyPayload struct {
	Raw      []string            `json:"raw,omitempty"` // base64-encoded chunks
	FormData map[string][]string `json:"form_data,omitempty"`
}

// RequestStart is the onBeforeRequest-equivalent event.
type RequestStart struct {
	ID        string              `json:"id"`
	URL       string              `json:"url"`
	Method    string              `json:"method"`
	Timestamp int64               `json:"ts"` // ms epoch
	Type      string              `json:"type"`
	Initiator string              `json:"initiator,omitempty"`
	Body      *RequestBodyPayload `json:"body,omitempty"`
}

// RequestHeadersSent fires once the request headers are on the wire.
type RequestHeadersSent struct {
	ID      string       `json:"id"`
	Headers []HeaderPair `json:"headers"`
}

// RequestCompleted is the normal terminal event for an exchange.
type RequestCompleted struct {
	ID              string       `json:"id"`
	StatusCode      int          `json:"status_code"`
	StatusLine      string       `json:"status_line,omitempty"`
	ResponseHeaders []HeaderPair `json:"response_headers,omitempty"`
	FromCache       bool         `json:"from_cache"`
}

// RequestErrored is the failure terminal event for an exchange.
type RequestErrored struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}
