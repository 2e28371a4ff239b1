package dispatcher

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aidyou/llmrouter/internal/adapter/backend"
	"github.com/aidyou/llmrouter/internal/adapter/input"
	"github.com/aidyou/llmrouter/internal/adapter/output"
	"github.com/aidyou/llmrouter/internal/alias"
	"github.com/aidyou/llmrouter/internal/config"
	"github.com/aidyou/llmrouter/internal/routererr"
	"github.com/aidyou/llmrouter/internal/stream"
	"github.com/aidyou/llmrouter/internal/toolcompat"
	"github.com/aidyou/llmrouter/internal/unified"
)

// Dispatcher is the single HTTP handler that wires together every other
// package: it resolves a route, asks the Alias Resolver for a target and
// key, converts the inbound body to a UnifiedRequest, dispatches to the
// target's Backend Adapter, and renders the result back through the
// inbound protocol's Output Adapter.
type Dispatcher struct {
	cfgMgr     *config.Manager
	resolver   *alias.Resolver
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfgMgr *config.Manager, resolver *alias.Resolver, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		cfgMgr:     cfgMgr,
		resolver:   resolver,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		logger:     logger,
	}
}

// incomingBody is the subset of every client protocol's request body the
// Dispatcher must read before it can pick an Input Adapter: the model name
// (to resolve a classic routing slot) and, for protocols that carry it in
// the body rather than the path, the stream flag.
type incomingBody struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt, ok := matchRoute(r.URL.Path)
	if !ok {
		writeError(w, ProtocolOpenAI, routererr.New(routererr.InvalidRequest, "no route for "+r.URL.Path))
		return
	}

	if rt.isModelList {
		d.serveModelList(w)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, rt.protocol, routererr.Wrap(routererr.InvalidRequest, "reading request body", err))
		return
	}

	presentedModel := rt.model
	streamWanted := rt.stream
	if rt.protocol != ProtocolGemini {
		var peek incomingBody
		if err := json.Unmarshal(body, &peek); err != nil {
			writeError(w, rt.protocol, routererr.Wrap(routererr.InvalidRequest, "decoding request body", err))
			return
		}
		presentedModel = peek.Model
		streamWanted = peek.Stream
	}

	cfg := d.cfgMgr.Get()
	tokens := d.resolver.CountTokens(string(body))
	aliasName := alias.ClassicSlot(cfg.Router, presentedModel, tokens, cfg.LongContextTokenThreshold)

	target, err := d.resolver.Resolve(aliasName, tokens)
	if err != nil {
		writeError(w, rt.protocol, routererr.Wrap(routererr.AliasUnknown, err.Error(), err))
		return
	}

	ur, err := d.toUnifiedRequest(rt, body, target, streamWanted, presentedModel)
	if err != nil {
		writeError(w, rt.protocol, routererr.Wrap(routererr.InvalidRequest, "converting request", err))
		return
	}
	ur.Model = target.Model
	ur.ToolCompatMode = target.ToolCompatMode

	if ur.ToolCompatMode {
		toolcompat.ApplyRequestRewrite(ur)
	}

	key, ok := d.resolver.NextKey(aliasName, target.Group)
	apiKey := target.Provider.APIKey
	baseURL := target.Provider.APIBase
	if ok {
		apiKey = key.Key
		if key.BaseURL != "" {
			baseURL = key.BaseURL
		}
	}
	if len(target.Provider.Keys()) == 0 && apiKey == "" {
		writeError(w, rt.protocol, routererr.New(routererr.NoKeysAvailable, "no API key configured for provider "+target.Provider.Name))
		return
	}

	be := backendFor(target.Provider)

	httpReq, err := be.BuildRequest(ur, apiKey, baseURL, target.Model)
	if err != nil {
		writeError(w, rt.protocol, routererr.Wrap(routererr.InternalError, "building upstream request", err))
		return
	}
	httpReq = httpReq.WithContext(r.Context())

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		writeError(w, rt.protocol, routererr.Wrap(routererr.UpstreamHTTPError, "upstream request failed", err))
		return
	}
	defer resp.Body.Close()

	reader, err := backend.DecompressReader(resp)
	if err != nil {
		writeError(w, rt.protocol, routererr.Wrap(routererr.UpstreamDecodeError, "decompressing upstream response", err))
		return
	}

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(reader)
		writeError(w, rt.protocol, routererr.Upstream(resp.StatusCode, "upstream returned "+resp.Status+": "+string(raw)))
		return
	}

	if ur.Stream {
		d.serveStream(w, r.Context(), rt, target, reader)
		return
	}
	d.serveUnary(w, rt, target, reader)
}

func (d *Dispatcher) toUnifiedRequest(rt route, body []byte, target alias.Target, streamWanted bool, model string) (*unified.UnifiedRequest, error) {
	switch rt.protocol {
	case ProtocolClaude:
		return input.FromClaude(body, target.ToolCompatMode)
	case ProtocolGemini:
		return input.FromGemini(body, rt.stream, target.ToolCompatMode, rt.model)
	case ProtocolOllama:
		return input.FromOllama(body, target.ToolCompatMode)
	default:
		return input.FromOpenAI(body, target.ToolCompatMode)
	}
}

// backendFor picks the Backend Adapter that speaks the target provider's
// wire protocol. HuggingFace is OpenAI-compatible with a rewritten
// endpoint, so it reuses OpenAIAdapter with its rewrite flag set rather
// than getting a Backend Adapter of its own.
func backendFor(p config.Provider) backend.Adapter {
	switch p.Protocol() {
	case config.ProtocolClaude:
		return &backend.ClaudeAdapter{}
	case config.ProtocolGemini:
		return &backend.GeminiAdapter{}
	case config.ProtocolOllama:
		return &backend.OllamaAdapter{}
	case config.ProtocolHuggingFace:
		return &backend.OpenAIAdapter{HuggingFaceRewrite: true}
	default:
		return &backend.OpenAIAdapter{}
	}
}

func (d *Dispatcher) serveUnary(w http.ResponseWriter, rt route, target alias.Target, reader io.Reader) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		writeError(w, rt.protocol, routererr.Wrap(routererr.UpstreamDecodeError, "reading upstream body", err))
		return
	}

	be := backendFor(target.Provider)
	resp, err := be.ParseResponse(raw)
	if err != nil {
		writeError(w, rt.protocol, routererr.Wrap(routererr.UpstreamDecodeError, "parsing upstream response", err))
		return
	}

	if target.ToolCompatMode {
		toolcompat.ApplyResponseRewrite(resp)
	}

	var out []byte
	switch rt.protocol {
	case ProtocolClaude:
		out, err = output.ClaudeResponse(*resp)
	case ProtocolGemini:
		out, err = output.GeminiResponse(*resp)
	case ProtocolOllama:
		out, err = output.OllamaResponse(*resp)
	default:
		out, err = output.OpenAIResponse(*resp)
	}
	if err != nil {
		writeError(w, rt.protocol, routererr.Wrap(routererr.InternalError, "rendering response", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

// streamFraming reports whether the given provider protocol frames its
// stream as SSE (blank-line delimited event/data blocks) or as
// newline-delimited JSON.
func streamFraming(protocol string) bool {
	return protocol != config.ProtocolOllama
}

func (d *Dispatcher) serveStream(w http.ResponseWriter, ctx context.Context, rt route, target alias.Target, reader io.Reader) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, rt.protocol, routererr.New(routererr.InternalError, "response writer does not support streaming"))
		return
	}

	clientSSE := rt.protocol != ProtocolOllama
	if clientSSE {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
	} else {
		w.Header().Set("Content-Type", "application/x-ndjson")
	}
	w.WriteHeader(http.StatusOK)

	be := backendFor(target.Provider)
	status := unified.NewSseStatus("", target.Model)
	var rewriter *toolcompat.StreamRewriter
	if target.ToolCompatMode {
		rewriter = &toolcompat.StreamRewriter{}
	}

	streamID := uuid.NewString()

	frames := make(chan stream.Frame, stream.DefaultChannelCapacity)
	errCh := make(chan error, 1)
	go func() {
		defer close(frames)
		br := bufio.NewReader(reader)
		if streamFraming(target.Provider.Protocol()) {
			errCh <- stream.ReadSSE(ctx, br, frames)
		} else {
			errCh <- stream.ReadNDJSON(ctx, br, frames)
		}
	}()

	for frame := range frames {
		if frame.Data == "" {
			continue
		}
		chunks, err := be.ParseStreamChunk([]byte(frame.Data), status)
		if err != nil {
			d.logger.Warn("dropping malformed upstream stream frame", "error", err)
			continue
		}
		for _, chunk := range chunks {
			d.emitChunk(w, flusher, rt, status, rewriter, streamID, target.Model, chunk)
		}
	}

	if rewriter != nil {
		for _, chunk := range rewriter.Flush() {
			d.writeClientChunk(w, flusher, rt, status, streamID, target.Model, chunk)
		}
	}

	if rt.protocol == ProtocolOpenAI && clientSSE {
		d.writeEvents(w, flusher, false, []output.SSEEvent{output.OpenAIStreamDone()})
	}

	if err := <-errCh; err != nil && d.logger != nil {
		d.logger.Warn("stream reassembly ended with error", "error", err)
	}
}

func (d *Dispatcher) emitChunk(w http.ResponseWriter, flusher http.Flusher, rt route, status *unified.SseStatus, rewriter *toolcompat.StreamRewriter, streamID, model string, chunk unified.StreamChunk) {
	if rewriter == nil {
		d.writeClientChunk(w, flusher, rt, status, streamID, model, chunk)
		return
	}
	for _, rewritten := range rewriter.Feed(chunk) {
		d.writeClientChunk(w, flusher, rt, status, streamID, model, rewritten)
	}
}

func (d *Dispatcher) writeClientChunk(w http.ResponseWriter, flusher http.Flusher, rt route, status *unified.SseStatus, streamID, model string, chunk unified.StreamChunk) {
	var events []output.SSEEvent
	switch rt.protocol {
	case ProtocolClaude:
		events = output.ClaudeStreamChunk(chunk, status)
	case ProtocolGemini:
		events = output.GeminiStreamChunk(chunk, status)
	case ProtocolOllama:
		events = output.OllamaStreamChunk(chunk, status, model)
	default:
		events = output.OpenAIStreamChunk(chunk, status, streamID, model)
	}
	d.writeEvents(w, flusher, rt.protocol == ProtocolOllama, events)
}

// writeEvents frames each event in the inbound client protocol's own wire
// shape: SSE "event:"/"data:" blocks for everything but Ollama, which
// speaks bare newline-delimited JSON with no "data:" prefix or blank-line
// separator.
func (d *Dispatcher) writeEvents(w http.ResponseWriter, flusher http.Flusher, ndjson bool, events []output.SSEEvent) {
	for _, ev := range events {
		if ndjson {
			fmt.Fprintf(w, "%s\n", ev.Data)
			continue
		}
		if ev.Event != "" {
			fmt.Fprintf(w, "event: %s\n", ev.Event)
		}
		fmt.Fprintf(w, "data: %s\n\n", ev.Data)
	}
	if len(events) > 0 {
		flusher.Flush()
	}
}

// modelListEntry mirrors the OpenAI /v1/models catalog shape; every
// configured alias is surfaced as a selectable model.
type modelListEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

func (d *Dispatcher) serveModelList(w http.ResponseWriter) {
	cfg := d.cfgMgr.Get()
	data := make([]modelListEntry, 0, len(cfg.Aliases))
	for name := range cfg.Aliases {
		data = append(data, modelListEntry{ID: name, Object: "model", OwnedBy: "llmrouter"})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
}
