package toolcompat

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ToolUse is one parsed <ccp:tool_use> block.
type ToolUse struct {
	ID     string
	Name   string
	Params map[string]any
}

// ParseError describes why a <ccp:tool_use> block could not be turned into
// a usable ToolUse, distinguishing a structurally broken block (missing
// id/name, unparseable XML) from one whose params alone were bad.
type ParseError struct {
	ArgsOnly bool // true iff id/name parsed fine but params did not
	Raw      string
	Err      error
}

func (e *ParseError) Error() string { return e.Err.Error() }

var toolUseBlockRe = regexp.MustCompile(`(?s)<` + regexp.QuoteMeta(TagToolUse) + `>(.*?)</` + regexp.QuoteMeta(TagToolUse) + `>`)

// Segment is either plain text passed through unchanged, or a parsed (or
// failed) tool-use block found within the text.
type Segment struct {
	Text    string
	ToolUse *ToolUse
	Err     *ParseError
}

// ExtractToolUses scans text for <ccp:tool_use> blocks, parsing each with
// the lenient rules, and returns the ordered sequence of plain-text and
// tool-use segments so callers can forward text and emit ToolUse* stream
// events in original order.
func ExtractToolUses(text string) []Segment {
	matches := toolUseBlockRe.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return []Segment{{Text: text}}
	}

	var segments []Segment
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		innerStart, innerEnd := m[2], m[3]

		if start > last {
			segments = append(segments, Segment{Text: text[last:start]})
		}

		tu, perr := parseToolUseInner(text[innerStart:innerEnd])
		if perr != nil {
			segments = append(segments, Segment{Err: perr, Text: text[start:end]})
		} else {
			segments = append(segments, Segment{ToolUse: tu})
		}

		last = end
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:]})
	}
	return segments
}

func parseToolUseInner(inner string) (*ToolUse, *ParseError) {
	dec := xml.NewDecoder(strings.NewReader("<root>" + inner + "</root>"))

	tu := &ToolUse{}
	var argErr error

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Raw: inner, Err: err}
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "id":
			tu.ID = readCharData(dec)
		case "name":
			tu.Name = readCharData(dec)
		case "params":
			params, err := parseParams(dec)
			if err != nil {
				argErr = err
			}
			tu.Params = params
		case "root":
			// synthetic wrapper, ignore
		default:
			// Unknown top-level child: skip to its matching end tag.
			_ = dec.Skip()
		}
	}

	if tu.ID == "" || tu.Name == "" {
		return nil, &ParseError{Raw: inner, Err: errMissingIDOrName}
	}
	if argErr != nil {
		return nil, &ParseError{ArgsOnly: true, Raw: inner, Err: argErr}
	}
	if tu.Params == nil {
		tu.Params = map[string]any{}
	}
	return tu, nil
}

var errMissingIDOrName = missingIDOrNameErr{}

type missingIDOrNameErr struct{}

func (missingIDOrNameErr) Error() string { return "tool_use block missing <id> or <name>" }

func readCharData(dec *xml.Decoder) string {
	var b strings.Builder
	depth := 1
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				return b.String()
			}
		}
	}
	return b.String()
}

func parseParams(dec *xml.Decoder) (map[string]any, error) {
	params := make(map[string]any)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return params, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "param" {
				_ = dec.Skip()
				continue
			}
			name, typeHint, valueAttr := "", "", ""
			hasValueAttr := false
			for _, a := range t.Attr {
				switch a.Name.Local {
				case "name":
					name = a.Value
				case "type":
					typeHint = a.Value
				case "value":
					valueAttr = a.Value
					hasValueAttr = true
				}
			}
			text := readCharData(dec)
			raw := text
			if hasValueAttr {
				raw = valueAttr
			}
			if name != "" {
				params[name] = coerceValue(raw, typeHint)
			}
		case xml.EndElement:
			if t.Name.Local == "params" {
				return params, nil
			}
		}
	}
	return params, nil
}

var floatTypes = map[string]bool{"float": true, "double": true, "f32": true, "f64": true, "number": true, "float32": true, "float64": true}
var intTypes = map[string]bool{"int": true, "integer": true}
var boolTypes = map[string]bool{"bool": true, "boolean": true}

// coerceValue implements the §4.6 type-coercion table: unescape XML
// entities, then coerce per an explicit type hint, or auto-infer when no
// hint is given. Any coercion failure falls back to the original string.
func coerceValue(raw, typeHint string) any {
	raw = unescapeXML(raw)
	hint := strings.ToLower(strings.TrimSpace(typeHint))

	switch {
	case floatTypes[hint]:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return raw
	case intTypes[hint]:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i
		}
		return raw
	case boolTypes[hint]:
		if bv, err := strconv.ParseBool(raw); err == nil {
			return bv
		}
		return raw
	case hint != "":
		return raw
	}

	return autoInfer(raw)
}

func autoInfer(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if bv, err := strconv.ParseBool(trimmed); err == nil && (trimmed == "true" || trimmed == "false") {
		return bv
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	if looksLikeJSONContainer(trimmed) {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return raw
}

func looksLikeJSONContainer(s string) bool {
	if len(s) < 2 {
		return false
	}
	return (s[0] == '{' && s[len(s)-1] == '}') || (s[0] == '[' && s[len(s)-1] == ']')
}
