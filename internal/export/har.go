// har.go — HTTP Archive (HAR 1.2) export of ledger snapshots.
// Converts request records into standard HAR format compatible with
// Chrome DevTools and other HAR viewers. Auth headers are stripped from
// output. Response bodies are never captured, so HAR content carries
// size only.
package export

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tabscope/tabscope/internal/types"
)

// ============================================
// HAR 1.2 Types
// ============================================

// HARLog is the top-level HAR structure
type HARLog struct {
	Log HARLogContent `json:"log"`
}

// HARLogContent holds the HAR log metadata and entries
type HARLogContent struct {
	Version string     `json:"version"`
	Creator HARCreator `json:"creator"`
	Entries []HAREntry `json:"entries"`
}

// HARCreator identifies the tool that generated the HAR
type HARCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HAREntry represents a single HTTP request/response pair
type HAREntry struct {
	StartedDateTime string      `json:"startedDateTime"`
	Time            int64       `json:"time"`
	Request         HARRequest  `json:"request"`
	Response        HARResponse `json:"response"`
	Cache           struct{}    `json:"cache"`
	Timings         HARTimings  `json:"timings"`
	Comment         string      `json:"comment,omitempty"`
}

// HARRequest represents the HTTP request
type HARRequest struct {
	Method      string       `json:"method"`
	URL         string       `json:"url"`
	HTTPVersion string       `json:"httpVersion"`
	Headers     []HARHeader  `json:"headers"`
	QueryString []HARQuery   `json:"queryString"`
	PostData    *HARPostData `json:"postData,omitempty"`
	HeadersSize int          `json:"headersSize"`
	BodySize    int          `json:"bodySize"`
}

// HARResponse represents the HTTP response
type HARResponse struct {
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Headers     []HARHeader `json:"headers"`
	Content     HARContent  `json:"content"`
	RedirectURL string      `json:"redirectURL"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int64       `json:"bodySize"`
	Comment     string      `json:"comment,omitempty"`
}

// HARContent represents the response body content
type HARContent struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// HARPostData represents the request body
type HARPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// HARTimings represents timing information for the request
type HARTimings struct {
	Send    int64 `json:"send"`
	Wait    int64 `json:"wait"`
	Receive int64 `json:"receive"`
}

// HARHeader represents a single HTTP header
type HARHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HARQuery represents a query string parameter
type HARQuery struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ============================================
// Filtering
// ============================================

// Filter narrows which records are exported. Zero values match all.
type Filter struct {
	URLContains string
	Method      string
	StatusMin   int
	StatusMax   int
}

// Match reports whether a record passes the filter. In-flight records
// (no status yet) only pass when no status range is set.
func (f Filter) Match(rec *types.RequestRecord) bool {
	if f.URLContains != "" && !strings.Contains(rec.URL, f.URLContains) {
		return false
	}
	if f.Method != "" && !strings.EqualFold(f.Method, rec.Method) {
		return false
	}
	if f.StatusMin > 0 || f.StatusMax > 0 {
		if rec.Status == nil {
			return false
		}
		if f.StatusMin > 0 && *rec.Status < f.StatusMin {
			return false
		}
		if f.StatusMax > 0 && *rec.Status > f.StatusMax {
			return false
		}
	}
	return true
}

// ============================================
// Conversion
// ============================================

// authHeaders are request headers stripped from HAR output.
var authHeaders = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
}

// FromRecords builds a HAR log from ledger records. Records arrive
// newest-first from the ledger and are reversed to the chronological
// order the HAR spec requires.
func FromRecords(records []*types.RequestRecord, version string, filter Filter) HARLog {
	entries := make([]HAREntry, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if !filter.Match(rec) {
			continue
		}
		entries = append(entries, recordToHAREntry(rec))
	}

	return HARLog{
		Log: HARLogContent{
			Version: "1.2",
			Creator: HARCreator{Name: "tabscope", Version: version},
			Entries: entries,
		},
	}
}

// recordToHAREntry converts a single RequestRecord to a HAREntry.
func recordToHAREntry(rec *types.RequestRecord) HAREntry {
	var duration int64
	if rec.Duration != nil {
		duration = *rec.Duration
	}

	entry := HAREntry{
		StartedDateTime: time.UnixMilli(rec.Timestamp).UTC().Format(time.RFC3339Nano),
		Time:            duration,
		Request: HARRequest{
			Method:      rec.Method,
			URL:         rec.URL,
			HTTPVersion: "HTTP/1.1",
			Headers:     headersToHAR(rec.RequestHeaders, true),
			QueryString: parseQueryString(rec.URL),
			HeadersSize: -1,
			BodySize:    len(rec.RequestBody),
		},
		Response: HARResponse{
			StatusText:  rec.StatusText,
			HTTPVersion: "HTTP/1.1",
			Headers:     headersToHAR(rec.ResponseHeaders, false),
			RedirectURL: "",
			HeadersSize: -1,
			BodySize:    -1,
		},
		Timings: HARTimings{
			Send:    -1,
			Wait:    duration,
			Receive: -1,
		},
	}

	if rec.Status != nil {
		entry.Response.Status = *rec.Status
	} else {
		entry.Comment = "in flight: no terminal event observed"
	}
	if rec.Error != "" {
		entry.Response.Comment = rec.Error
	}
	if rec.Size != nil {
		entry.Response.Content.Size = *rec.Size
		entry.Response.BodySize = *rec.Size
	}
	if ct, ok := rec.ResponseHeaders["content-type"]; ok {
		entry.Response.Content.MimeType = ct
	} else if ct, ok := rec.ResponseHeaders["Content-Type"]; ok {
		entry.Response.Content.MimeType = ct
	}

	if rec.RequestBody != "" {
		entry.Request.PostData = &HARPostData{
			MimeType: rec.RequestHeaders["Content-Type"],
			Text:     rec.RequestBody,
		}
	}

	return entry
}

// headersToHAR flattens a header map to sorted HAR pairs. Request-side
// auth headers are stripped.
func headersToHAR(headers map[string]string, stripAuth bool) []HARHeader {
	result := make([]HARHeader, 0, len(headers))
	for name, value := range headers {
		if stripAuth && authHeaders[strings.ToLower(name)] {
			continue
		}
		result = append(result, HARHeader{Name: name, Value: value})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// parseQueryString extracts query parameters from a URL
func parseQueryString(rawURL string) []HARQuery {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return []HARQuery{}
	}

	params := parsed.Query()
	if len(params) == 0 {
		return []HARQuery{}
	}

	result := make([]HARQuery, 0, len(params))
	for name, values := range params {
		for _, value := range values {
			result = append(result, HARQuery{Name: name, Value: value})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
