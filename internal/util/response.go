// response.go — HTTP response utilities
package util

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// JSONResponse writes a JSON response with the given status code and data
func JSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Fprintf(os.Stderr, "[tabscope] Error encoding JSON response: %v\n", err)
	}
}
