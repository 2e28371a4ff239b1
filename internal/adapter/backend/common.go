// Package backend implements the four Backend Adapters: UnifiedRequest ->
// upstream provider wire request, and upstream wire response/stream bytes
// back into the canonical UnifiedResponse / UnifiedStreamChunk model.
package backend

import (
	"compress/gzip"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"

	"github.com/aidyou/llmrouter/internal/unified"
)

// Adapter is implemented once per upstream protocol. BuildRequest never
// sends the request; callers own the http.Client and the Key Rotator
// selection that produced apiKey.
type Adapter interface {
	BuildRequest(ur *unified.UnifiedRequest, apiKey, baseURL, model string) (*http.Request, error)
	ParseResponse(body []byte) (*unified.UnifiedResponse, error)
	ParseStreamChunk(raw []byte, status *unified.SseStatus) ([]unified.StreamChunk, error)
}

// DecompressReader wraps resp.Body according to Content-Encoding so raw
// bytes handed to an Adapter's ParseStreamChunk are always decoded.
func DecompressReader(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}
