// ws.go — WebSocket event channel for the extension.
// One connection per extension background worker. Frames are the same
// lifecycle events POST /events carries, one JSON object per message.
// A malformed frame is logged and skipped; only transport errors end
// the read loop.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/tabscope/tabscope/internal/types"
	"github.com/tabscope/tabscope/internal/util"
)

// handleWS upgrades the connection and pumps lifecycle frames into the
// ledger until the extension disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		fmt.Fprintf(os.Stderr, "[tabscope] WebSocket upgrade failed: %v\n", err)
		return
	}

	connID := uuid.NewString()
	fmt.Fprintf(os.Stderr, "[tabscope] extension connected (conn %s)\n", connID)

	util.SafeGo(func() {
		defer conn.Close()
		defer fmt.Fprintf(os.Stderr, "[tabscope] extension disconnected (conn %s)\n", connID)

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var frame types.EventFrame
			if err := json.Unmarshal(payload, &frame); err != nil {
				fmt.Fprintf(os.Stderr, "[tabscope] dropping malformed frame on conn %s: %v\n", connID, err)
				continue
			}
			if err := s.applyFrame(frame); err != nil {
				fmt.Fprintf(os.Stderr, "[tabscope] dropping frame on conn %s: %v\n", connID, err)
			}
		}
	})
}
