// Package input implements the four Input Adapters: client protocol wire
// request -> UnifiedRequest.
package input

import (
	"encoding/json"
	"strings"

	"github.com/aidyou/llmrouter/internal/routererr"
	"github.com/aidyou/llmrouter/internal/toolcompat"
	"github.com/aidyou/llmrouter/internal/unified"
)

// failedToolCallBlocks builds the two-text-block fallback from §4.1 point
// 6: a provider's native tool-call id/name were well-formed but its
// arguments blob didn't parse as JSON, so rather than rejecting the
// request we substitute a sentinel plus a fixed reminder so the model can
// self-correct next turn. Since id/name are already known-good here, this
// is always the args-only case.
func failedToolCallBlocks(original string) []unified.ContentBlock {
	return []unified.ContentBlock{
		unified.TextBlock(toolcompat.FormatFailedToolCall(original)),
		unified.TextBlock(toolcompat.TOOL_ARG_ERROR_REMINDER),
	}
}

func joinStrings(parts []string) string {
	return strings.Join(parts, "\n")
}

func invalidRequest(msg string) error {
	return routererr.New(routererr.InvalidRequest, msg)
}

// decodeJSONOrText decodes raw into a string, accepting both a bare JSON
// string and a JSON array of {type, text|...} parts joined with "\n", the
// shape every one of the four content-body conventions degenerates to once
// images are pulled out separately.
func decodeJSONOrText(raw json.RawMessage) (text string, images []unified.ContentBlock, err error) {
	if len(raw) == 0 {
		return "", nil, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil, nil
	}

	var parts []map[string]any
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", nil, invalidRequest("content must be a string or an array of content parts")
	}

	var texts []string
	for _, p := range parts {
		typ, _ := p["type"].(string)
		switch typ {
		case "text", "input_text":
			if t, ok := p["text"].(string); ok {
				texts = append(texts, t)
			}
		case "image_url":
			if obj, ok := p["image_url"].(map[string]any); ok {
				if url, ok := obj["url"].(string); ok {
					mt, data := splitDataURL(url)
					images = append(images, unified.ImageBlock(mt, data))
				}
			}
		case "image":
			if src, ok := p["source"].(map[string]any); ok {
				mt, _ := src["media_type"].(string)
				data, _ := src["data"].(string)
				images = append(images, unified.ImageBlock(mt, data))
			}
		}
	}
	return joinStrings(texts), images, nil
}

// splitDataURL pulls media type and base64 payload out of a
// "data:<mime>;base64,<data>" URL.
func splitDataURL(url string) (mediaType, data string) {
	const prefix = "data:"
	if !strings.HasPrefix(url, prefix) {
		return "", url
	}
	rest := strings.TrimPrefix(url, prefix)
	semi := strings.Index(rest, ";base64,")
	if semi == -1 {
		return "", rest
	}
	return rest[:semi], rest[semi+len(";base64,"):]
}
