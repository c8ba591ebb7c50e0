// record.go — Request ledger record type.
// RequestRecord is the unit stored by the ledger: one observed network
// exchange, built up in place from the lifecycle events the extension
// forwards. Zero dependencies - foundational type used by ledger, dispatch,
// and export packages.
package types

// RequestRecord represents one observed network exchange.
//
// Optional numeric fields are pointers so "never observed" is
// distinguishable from a real zero: an errored exchange has Status
// pointing at 0, while an in-flight exchange has Status == nil.
// ResponseBody is declared for wire compatibility but never populated —
// the webRequest observation API exposes no response bytes.
type RequestRecord struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	Status          *int              `json:"status,omitempty"`
	StatusText      string            `json:"status_text,omitempty"`
	Timestamp       int64             `json:"ts"` // ms epoch, first observation
	Type            string            `json:"type"`
	Initiator       string            `json:"initiator,omitempty"`
	RequestHeaders  map[string]string `json:"request_headers,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	RequestBody     string            `json:"request_body,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`
	Size            *int64            `json:"size,omitempty"`
	Duration        *int64            `json:"duration,omitempty"` // ms, terminal − start
	FromCache       *bool             `json:"from_cache,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// BinaryBodySentinel replaces request bodies that fail text decoding.
const BinaryBodySentinel = "[Binary data]"

// Completed reports whether a terminal event (completion or error) has
// been applied to the record.
func (r *RequestRecord) Completed() bool {
	return r.Status != nil
}

// Clone returns a deep copy of the record. Header maps and optional
// pointers are duplicated so callers can never mutate ledger state
// through a snapshot.
func (r *RequestRecord) Clone() *RequestRecord {
	out := *r
	if r.RequestHeaders != nil {
		out.RequestHeaders = make(map[string]string, len(r.RequestHeaders))
		for k, v := range r.RequestHeaders {
			out.RequestHeaders[k] = v
		}
	}
	if r.ResponseHeaders != nil {
		out.ResponseHeaders = make(map[string]string, len(r.ResponseHeaders))
		for k, v := range r.ResponseHeaders {
			out.ResponseHeaders[k] = v
		}
	}
	if r.Status != nil {
		s := *r.Status
		out.Status = &s
	}
	if r.Size != nil {
		n := *r.Size
		out.Size = &n
	}
	if r.Duration != nil {
		d := *r.Duration
		out.Duration = &d
	}
	if r.FromCache != nil {
		b := *r.FromCache
		out.FromCache = &b
	}
	return &out
}
