// ingest.go — The four lifecycle ingestion operations.
// Each corresponds to one webRequest callback. All are fire-and-forget:
// no return values, no propagated errors, silent no-ops for unknown ids
// (expected under capacity pressure, not logged as errors).
package ledger

import "github.com/tabscope/tabscope/internal/types"

// IngestStart records a newly observed exchange. The id is not required
// to be novel: a reused id inserts a second record and later events
// correlate with the newer one.
func (l *Ledger) IngestStart(ev types.RequestStart) {
	l.safely("start", func() {
		rec := &types.RequestRecord{
			ID:          ev.ID,
			URL:         ev.URL,
			Method:      ev.Method,
			Timestamp:   ev.Timestamp,
			Type:        ev.Type,
			Initiator:   ev.Initiator,
			RequestBody: decodeRequestBody(ev.Body),
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		l.insertLocked(rec)
		l.started[ev.ID] = ev.Timestamp
	})
}

// IngestHeadersSent merges the outgoing request headers into the record.
// Later duplicate names overwrite earlier ones. Order-tolerant: applying
// after a terminal event only adds headers, never disturbs set fields.
func (l *Ledger) IngestHeadersSent(ev types.RequestHeadersSent) {
	l.safely("headers_sent", func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		rec, ok := l.byID[ev.ID]
		if !ok {
			return // evicted or never started
		}
		if rec.RequestHeaders == nil {
			rec.RequestHeaders = make(map[string]string, len(ev.Headers))
		}
		for _, h := range ev.Headers {
			rec.RequestHeaders[h.Name] = h.Value
		}
	})
}

// IngestCompleted applies the normal terminal event: status, status text,
// response headers, cache flag, derived size and duration. The stale
// correlation entry is removed even when the record itself was evicted.
func (l *Ledger) IngestCompleted(ev types.RequestCompleted) {
	l.safely("completed", func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		startTS, tracked := l.started[ev.ID]
		delete(l.started, ev.ID)

		rec, ok := l.byID[ev.ID]
		if !ok || rec.Completed() {
			return // evicted, never started, or already terminal
		}

		status := ev.StatusCode
		rec.Status = &status
		rec.StatusText = statusTextAfterCode(ev.StatusLine, ev.StatusCode)
		rec.ResponseHeaders = pairsToMap(ev.ResponseHeaders)
		fromCache := ev.FromCache
		rec.FromCache = &fromCache
		if tracked {
			d := l.now().UnixMilli() - startTS
			rec.Duration = &d
		}
		if n, ok := contentLength(rec.ResponseHeaders); ok {
			rec.Size = &n
		}
	})
}

// IngestErrored applies the failure terminal event: status 0, statusText
// "Error", and the transport error description. Response headers, size
// and cache flag stay absent.
func (l *Ledger) IngestErrored(ev types.RequestErrored) {
	l.safely("errored", func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		startTS, tracked := l.started[ev.ID]
		delete(l.started, ev.ID)

		rec, ok := l.byID[ev.ID]
		if !ok || rec.Completed() {
			return
		}

		zero := 0
		rec.Status = &zero
		rec.StatusText = "Error"
		rec.Error = ev.Error
		if tracked {
			d := l.now().UnixMilli() - startTS
			rec.Duration = &d
		}
	})
}

// pairsToMap folds ordered header pairs into a map, later names winning.
func pairsToMap(pairs []types.HeaderPair) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		m[p.Name] = p.Value
	}
	return m
}
