// events.go — Lifecycle event ingestion (batch POST path).
// The WebSocket channel is preferred; POST /events exists for MV3
// service-worker restarts, when the extension flushes its queued frames
// in one batch before the socket is back up.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tabscope/tabscope/internal/types"
	"github.com/tabscope/tabscope/internal/util"
)

// handleEvents ingests a batch of lifecycle event frames.
// Malformed frames are dropped individually; the batch never fails as a
// whole, mirroring the fire-and-forget ingestion contract.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPostBody)

	var body struct {
		Events []types.EventFrame `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		util.JSONResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	accepted, dropped := 0, 0
	for _, frame := range body.Events {
		if err := s.applyFrame(frame); err != nil {
			dropped++
			continue
		}
		accepted++
	}

	util.JSONResponse(w, http.StatusOK, map[string]int{
		"accepted": accepted,
		"dropped":  dropped,
	})
}

// applyFrame routes one event frame to the matching ledger operation.
func (s *Server) applyFrame(frame types.EventFrame) error {
	switch frame.Event {
	case types.EventStart:
		var ev types.RequestStart
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return fmt.Errorf("decoding start frame: %w", err)
		}
		s.ledger.IngestStart(ev)

	case types.EventHeadersSent:
		var ev types.RequestHeadersSent
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return fmt.Errorf("decoding headers_sent frame: %w", err)
		}
		s.ledger.IngestHeadersSent(ev)

	case types.EventCompleted:
		var ev types.RequestCompleted
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return fmt.Errorf("decoding completed frame: %w", err)
		}
		s.ledger.IngestCompleted(ev)

	case types.EventErrored:
		var ev types.RequestErrored
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			return fmt.Errorf("decoding errored frame: %w", err)
		}
		s.ledger.IngestErrored(ev)

	default:
		return fmt.Errorf("unknown event kind %q", frame.Event)
	}
	return nil
}
