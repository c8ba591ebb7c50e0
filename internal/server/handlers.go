// handlers.go — Query, snapshot, and export HTTP handlers.
// POST /query is the canonical message boundary; the GET endpoints are
// conveniences that wrap the same dispatcher messages so curl and the
// popup's fetch calls stay trivial.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/tabscope/tabscope/internal/dispatch"
	"github.com/tabscope/tabscope/internal/export"
	"github.com/tabscope/tabscope/internal/types"
	"github.com/tabscope/tabscope/internal/util"
)

// handleQuery decodes one dispatch message and returns its envelope.
// The envelope itself carries success/failure; HTTP status stays 200
// unless the request never reached the dispatcher.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPostBody)

	var msg dispatch.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		util.JSONResponse(w, http.StatusBadRequest, dispatch.Envelope{
			Success: false,
			Error:   "invalid JSON",
		})
		return
	}

	util.JSONResponse(w, http.StatusOK, s.disp.Dispatch(msg))
}

// handleRequests returns the current ledger, newest-first.
func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	util.JSONResponse(w, http.StatusOK, s.disp.Dispatch(dispatch.Message{Type: dispatch.MsgGetWebRequests}))
}

// handleStatus returns daemon status counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	util.JSONResponse(w, http.StatusOK, s.disp.Dispatch(dispatch.Message{Type: dispatch.MsgGetStatus}))
}

// handleCookies returns the latest cookie snapshot for ?tab_id=N.
func (s *Server) handleCookies(w http.ResponseWriter, r *http.Request) {
	s.tabQuery(w, r, dispatch.MsgGetCookies)
}

// handleStorage returns the latest storage snapshot for ?tab_id=N.
func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	s.tabQuery(w, r, dispatch.MsgGetStorage)
}

func (s *Server) tabQuery(w http.ResponseWriter, r *http.Request, msgType string) {
	tabID, err := strconv.Atoi(r.URL.Query().Get("tab_id"))
	if err != nil {
		util.JSONResponse(w, http.StatusBadRequest, dispatch.Envelope{
			Success: false,
			Error:   "tab_id query parameter required",
		})
		return
	}
	params, _ := json.Marshal(map[string]int{"tab_id": tabID})
	util.JSONResponse(w, http.StatusOK, s.disp.Dispatch(dispatch.Message{Type: msgType, Params: params}))
}

// handleCookieSnapshot stores a pushed cookie snapshot.
func (s *Server) handleCookieSnapshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPostBody)

	var snap types.CookieSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		util.JSONResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	s.pages.PutCookies(snap)
	util.JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStorageSnapshot stores a pushed storage snapshot.
func (s *Server) handleStorageSnapshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPostBody)

	var snap types.StorageSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		util.JSONResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	s.pages.PutStorage(snap)
	util.JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleExportHAR streams a HAR download of the current ledger.
// Query params: url, method, status_min, status_max, gzip=1.
func (s *Server) handleExportHAR(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := export.Filter{
		URLContains: q.Get("url"),
		Method:      q.Get("method"),
	}
	if v := q.Get("status_min"); v != "" {
		filter.StatusMin, _ = strconv.Atoi(v)
	}
	if v := q.Get("status_max"); v != "" {
		filter.StatusMax, _ = strconv.Atoi(v)
	}
	compress := q.Get("gzip") == "1"

	har := export.FromRecords(s.ledger.Snapshot(), s.version, filter)

	filename := fmt.Sprintf("tabscope-%s.har", time.Now().UTC().Format("20060102-150405"))
	if compress {
		filename += ".gz"
		w.Header().Set("Content-Type", "application/gzip")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := export.Write(w, har, compress); err != nil {
		// Headers are already on the wire; all we can do is log.
		fmt.Fprintf(os.Stderr, "[tabscope] HAR export write failed: %v\n", err)
	}
}
