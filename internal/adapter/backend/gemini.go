package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/aidyou/llmrouter/internal/adapter/types"
	"github.com/aidyou/llmrouter/internal/unified"
)

// GeminiAdapter talks to Google's generateContent/streamGenerateContent
// API. Gemini authenticates via an API-key query parameter rather than a
// header.
type GeminiAdapter struct{}

func (a *GeminiAdapter) BuildRequest(ur *unified.UnifiedRequest, apiKey, baseURL, model string) (*http.Request, error) {
	req := types.GeminiRequest{
		SafetySettings: ur.SafetySettings,
		CachedContent:  ur.CachedContent,
	}
	if ur.SystemPrompt != "" {
		req.SystemInstruction = &types.GeminiContent{Parts: []types.GeminiPart{{Text: ur.SystemPrompt}}}
	}
	for _, m := range ur.Messages {
		req.Contents = append(req.Contents, toGeminiContent(m))
	}
	if len(ur.Tools) > 0 {
		decls := make([]types.GeminiFunctionDecl, 0, len(ur.Tools))
		for _, t := range ur.Tools {
			decls = append(decls, types.GeminiFunctionDecl{Name: t.Name, Description: t.Description, Parameters: t.InputSchema})
		}
		req.Tools = []types.GeminiTool{{FunctionDeclarations: decls}}
	}

	gc := &types.GeminiGenerationConfig{
		Temperature:      ur.Temperature,
		TopP:             ur.TopP,
		TopK:             ur.TopK,
		MaxOutputTokens:  ur.MaxTokens,
		StopSequences:    ur.StopSequences,
		ResponseMimeType: ur.ResponseMimeType,
		ResponseSchema:   ur.ResponseSchema,
	}
	req.GenerationConfig = gc

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	method := "generateContent"
	if ur.Stream {
		method = "streamGenerateContent"
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:%s?key=%s", strings.TrimRight(baseURL, "/"), model, method, apiKey)
	if ur.Stream {
		url += "&alt=sse"
	}

	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

func toGeminiContent(m unified.UnifiedMessage) types.GeminiContent {
	role := "user"
	if m.Role == unified.RoleAssistant {
		role = "model"
	}
	gc := types.GeminiContent{Role: role}
	for _, c := range m.Content {
		switch c.Type {
		case unified.ContentText:
			gc.Parts = append(gc.Parts, types.GeminiPart{Text: c.Text})
		case unified.ContentThinking:
			gc.Parts = append(gc.Parts, types.GeminiPart{Text: c.Text, Thought: true})
		case unified.ContentImage:
			gc.Parts = append(gc.Parts, types.GeminiPart{InlineData: &types.GeminiInlineData{MimeType: c.MediaType, Data: c.Data}})
		case unified.ContentToolUse:
			gc.Parts = append(gc.Parts, types.GeminiPart{FunctionCall: &types.GeminiFunctionCall{Name: c.Name, Args: c.Input}})
		case unified.ContentToolResult:
			resp, _ := json.Marshal(map[string]string{"result": c.Text})
			gc.Parts = append(gc.Parts, types.GeminiPart{FunctionResp: &types.GeminiFunctionResp{Name: c.ToolUseID, Response: resp}})
		}
	}
	return gc
}

func (a *GeminiAdapter) ParseResponse(body []byte) (*unified.UnifiedResponse, error) {
	var resp types.GeminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini response has no candidates")
	}
	candidate := resp.Candidates[0]

	var content []unified.ContentBlock
	for _, p := range candidate.Content.Parts {
		content = append(content, fromGeminiPart(p))
	}

	ur := &unified.UnifiedResponse{Model: resp.ModelVersion, Content: content, StopReason: candidate.FinishReason}
	if resp.UsageMetadata != nil {
		ur.Usage = unified.UnifiedUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}
	return ur, nil
}

func fromGeminiPart(p types.GeminiPart) unified.ContentBlock {
	switch {
	case p.FunctionCall != nil:
		return unified.ToolUseBlock(uuid.NewString(), p.FunctionCall.Name, p.FunctionCall.Args)
	case p.InlineData != nil:
		return unified.ImageBlock(p.InlineData.MimeType, p.InlineData.Data)
	case p.Thought:
		return unified.ThinkingBlock(p.Text)
	default:
		return unified.TextBlock(p.Text)
	}
}

// ParseStreamChunk translates one streamGenerateContent SSE data frame.
// Gemini delivers each function call atomically within a single frame, so
// a full ToolUseStart/ToolUseDelta/ToolUseEnd triplet is synthesized per
// call the moment its frame arrives.
func (a *GeminiAdapter) ParseStreamChunk(raw []byte, status *unified.SseStatus) ([]unified.StreamChunk, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var resp types.GeminiResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("parse gemini stream chunk: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, nil
	}
	candidate := resp.Candidates[0]

	var out []unified.StreamChunk
	for _, p := range candidate.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			id := uuid.NewString()
			out = append(out,
				unified.ToolUseStart("function", id, p.FunctionCall.Name),
				unified.ToolUseDelta(id, string(p.FunctionCall.Args)),
				unified.ToolUseEnd(id),
			)
		case p.Thought:
			out = append(out, unified.ThinkingDelta(p.Text))
		case p.Text != "":
			out = append(out, unified.TextDelta(p.Text))
		}
	}

	if candidate.FinishReason != "" {
		usage := unified.UnifiedUsage{}
		if resp.UsageMetadata != nil {
			usage = unified.UnifiedUsage{
				InputTokens:  resp.UsageMetadata.PromptTokenCount,
				OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			}
		}
		out = append(out, unified.MessageStop(candidate.FinishReason, usage))
	}
	return out, nil
}
