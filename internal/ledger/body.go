// body.go — Best-effort request body decoding and header parsing.
// Decode failures degrade to the binary sentinel, malformed header
// values degrade to absent fields. Nothing here returns an error.
package ledger

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tabscope/tabscope/internal/types"
)

// decodeRequestBody turns the raw webRequest body payload into readable
// text. Form data serializes to "key=value" lines (keys sorted for
// stable output); raw chunks are concatenated and must decode as valid
// UTF-8, otherwise the binary sentinel is substituted.
func decodeRequestBody(p *types.RequestBodyPayload) string {
	if p == nil {
		return ""
	}

	if len(p.FormData) > 0 {
		keys := make([]string, 0, len(p.FormData))
		for k := range p.FormData {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var b strings.Builder
		for _, k := range keys {
			for _, v := range p.FormData[k] {
				fmt.Fprintf(&b, "%s=%s\n", k, v)
			}
		}
		return strings.TrimRight(b.String(), "\n")
	}

	if len(p.Raw) > 0 {
		var buf bytes.Buffer
		for _, chunk := range p.Raw {
			decoded, err := base64.StdEncoding.DecodeString(chunk)
			if err != nil {
				return types.BinaryBodySentinel
			}
			buf.Write(decoded)
		}
		if !utf8.Valid(buf.Bytes()) {
			return types.BinaryBodySentinel
		}
		return buf.String()
	}

	return ""
}

// statusTextAfterCode extracts the human-readable remainder of an HTTP
// status line after the numeric code, e.g. "HTTP/1.1 404 Not Found" with
// code 404 yields "Not Found". Empty when the line is missing or the
// code never appears in it.
func statusTextAfterCode(line string, code int) string {
	if line == "" {
		return ""
	}
	want := strconv.Itoa(code)
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == want {
			return strings.Join(fields[i+1:], " ")
		}
	}
	return ""
}

// contentLength finds a case-insensitive content-length header and
// parses it as a non-negative integer. Malformed values leave the size
// absent rather than raising.
func contentLength(headers map[string]string) (int64, bool) {
	for name, value := range headers {
		if !strings.EqualFold(name, "content-length") {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
