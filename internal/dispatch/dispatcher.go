// dispatcher.go — Transport-agnostic query boundary.
// Clients (popup UI, CLI) speak a small request/response protocol; the
// dispatcher routes each message to the ledger or page-state store and
// answers with a discriminated success/failure envelope. The transport
// (HTTP handler, WebSocket frame) is someone else's problem.
package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tabscope/tabscope/internal/export"
	"github.com/tabscope/tabscope/internal/ledger"
	"github.com/tabscope/tabscope/internal/pagestate"
)

// Message types understood by the dispatcher.
const (
	MsgGetWebRequests   = "GET_WEB_REQUESTS"
	MsgClearWebRequests = "CLEAR_WEB_REQUESTS"
	MsgGetCookies       = "GET_COOKIES"
	MsgGetStorage       = "GET_STORAGE"
	MsgExportHAR        = "EXPORT_HAR"
	MsgGetStatus        = "GET_STATUS"
)

// Message is one request from a client.
type Message struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Envelope is the uniform response: either Data on success or Error.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(data any) Envelope     { return Envelope{Success: true, Data: data} }
func fail(msg string) Envelope { return Envelope{Success: false, Error: msg} }

// tabParams selects a tab for snapshot queries.
type tabParams struct {
	TabID int `json:"tab_id"`
}

// harParams narrows an EXPORT_HAR request.
type harParams struct {
	URLContains string `json:"url_contains,omitempty"`
	Method      string `json:"method,omitempty"`
	StatusMin   int    `json:"status_min,omitempty"`
	StatusMax   int    `json:"status_max,omitempty"`
}

// Status is the GET_STATUS payload.
type Status struct {
	Records  int    `json:"records"`
	InFlight int    `json:"in_flight"`
	Capacity int    `json:"capacity"`
	Tabs     int    `json:"tabs"`
	UptimeMS int64  `json:"uptime_ms"`
	Version  string `json:"version"`
}

// Dispatcher routes client messages to the owning components.
type Dispatcher struct {
	ledger    *ledger.Ledger
	pages     *pagestate.Store
	version   string
	startedAt time.Time
}

// New creates a dispatcher over the given components.
func New(l *ledger.Ledger, pages *pagestate.Store, version string) *Dispatcher {
	return &Dispatcher{
		ledger:    l,
		pages:     pages,
		version:   version,
		startedAt: time.Now(),
	}
}

// Dispatch answers one message. It never panics past its boundary: an
// unexpected panic becomes a failure envelope.
func (d *Dispatcher) Dispatch(msg Message) (env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			env = fail(fmt.Sprintf("internal error handling %s: %v", msg.Type, r))
		}
	}()

	switch msg.Type {
	case MsgGetWebRequests:
		return ok(d.ledger.Snapshot())

	case MsgClearWebRequests:
		d.ledger.Clear()
		return Envelope{Success: true}

	case MsgGetCookies:
		var p tabParams
		if err := unmarshalParams(msg.Params, &p); err != nil {
			return fail(err.Error())
		}
		snap, found := d.pages.Cookies(p.TabID)
		if !found {
			return fail(fmt.Sprintf("no cookie snapshot for tab %d", p.TabID))
		}
		return ok(snap)

	case MsgGetStorage:
		var p tabParams
		if err := unmarshalParams(msg.Params, &p); err != nil {
			return fail(err.Error())
		}
		snap, found := d.pages.Storage(p.TabID)
		if !found {
			return fail(fmt.Sprintf("no storage snapshot for tab %d", p.TabID))
		}
		return ok(snap)

	case MsgExportHAR:
		var p harParams
		if err := unmarshalParams(msg.Params, &p); err != nil {
			return fail(err.Error())
		}
		har := export.FromRecords(d.ledger.Snapshot(), d.version, export.Filter{
			URLContains: p.URLContains,
			Method:      p.Method,
			StatusMin:   p.StatusMin,
			StatusMax:   p.StatusMax,
		})
		return ok(har)

	case MsgGetStatus:
		return ok(Status{
			Records:  d.ledger.Len(),
			InFlight: d.ledger.InFlight(),
			Capacity: d.ledger.Cap(),
			Tabs:     len(d.pages.Tabs()),
			UptimeMS: time.Since(d.startedAt).Milliseconds(),
			Version:  d.version,
		})

	default:
		return fail(fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

// unmarshalParams decodes optional params, tolerating absent payloads.
func unmarshalParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}
