// writer.go — HAR serialization, optionally gzip-compressed.
package export

import (
	"encoding/json"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Write serializes the HAR log as JSON to w. When compress is true the
// output is gzip-wrapped (for the /export/har download path).
func Write(w io.Writer, log HARLog, compress bool) error {
	if !compress {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(log)
	}

	gz := gzip.NewWriter(w)
	enc := json.NewEncoder(gz)
	enc.SetIndent("", "  ")
	if err := enc.Encode(log); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}
