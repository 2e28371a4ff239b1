package toolcompat

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aidyou/llmrouter/internal/unified"
)

type schemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type jsonSchema struct {
	Properties map[string]schemaProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

// escapeXML escapes only &, <, > in attribute/text content, matching the
// original implementation's minimal escaping (not full entity escaping).
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func unescapeXML(s string) string {
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

// GenerateToolsXML builds the <ccp:tools> definitions block: one
// <ccp:tool_define> per tool, each listing required parameters (sorted
// alphabetically) then optional parameters (sorted alphabetically).
func GenerateToolsXML(tools []unified.UnifiedTool) string {
	var b strings.Builder
	b.WriteString("<" + TagTools + ">\n")
	for _, tool := range tools {
		writeToolDefine(&b, tool)
	}
	b.WriteString("</" + TagTools + ">")
	return b.String()
}

func writeToolDefine(b *strings.Builder, tool unified.UnifiedTool) {
	var schema jsonSchema
	_ = json.Unmarshal(tool.InputSchema, &schema)

	required := make(map[string]bool, len(schema.Required))
	for _, r := range schema.Required {
		required[r] = true
	}

	var requiredNames, optionalNames []string
	for name := range schema.Properties {
		if required[name] {
			requiredNames = append(requiredNames, name)
		} else {
			optionalNames = append(optionalNames, name)
		}
	}
	sort.Strings(requiredNames)
	sort.Strings(optionalNames)

	fmt.Fprintf(b, "  <%s>\n", TagToolDefine)
	fmt.Fprintf(b, "    <name>%s</name>\n", escapeXML(tool.Name))
	if tool.Description != "" {
		fmt.Fprintf(b, "    <description>%s</description>\n", escapeXML(tool.Description))
	}
	b.WriteString("    <params>\n")
	for _, name := range requiredNames {
		writeParamDef(b, name, schema.Properties[name], true)
	}
	for _, name := range optionalNames {
		writeParamDef(b, name, schema.Properties[name], false)
	}
	b.WriteString("    </params>\n")
	fmt.Fprintf(b, "  </%s>\n", TagToolDefine)
}

func writeParamDef(b *strings.Builder, name string, prop schemaProperty, required bool) {
	typ := prop.Type
	if typ == "" {
		typ = "string"
	}
	requirement := "optional"
	if required {
		requirement = "required"
	}
	desc := prop.Description
	if desc == "" {
		desc = name
	}
	fmt.Fprintf(b, "      <param name=%q type=%q>%s (%s)</param>\n",
		escapeXML(name), escapeXML(typ), escapeXML(desc), requirement)
}
