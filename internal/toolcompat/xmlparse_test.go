package toolcompat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidyou/llmrouter/internal/unified"
)

// TestLenientParseMalformedFixture is scenario E: unknown child tags inside
// <params> are silently dropped, and only the two well-formed <param>
// entries survive.
func TestLenientParseMalformedFixture(t *testing.T) {
	input := `<ccp:tool_use>
  <id>t1</id><name>Bash</name>
  <params>
    <param name="command">cd /tmp &amp;&amp; ls</param>
    <param name="description">list</param>
    <subagent_type>ignored</subagent_type>
  </params>
</ccp:tool_use>`

	segs := ExtractToolUses(input)
	require.Len(t, segs, 1)
	require.NotNil(t, segs[0].ToolUse)
	require.Nil(t, segs[0].Err)

	tu := segs[0].ToolUse
	assert.Equal(t, "t1", tu.ID)
	assert.Equal(t, "Bash", tu.Name)
	assert.Equal(t, "cd /tmp && ls", tu.Params["command"])
	assert.Equal(t, "list", tu.Params["description"])
	assert.NotContains(t, tu.Params, "subagent_type")
}

func TestTypeCoercionExplicitHints(t *testing.T) {
	assert.Equal(t, 3.5, coerceValue("3.5", "float"))
	assert.Equal(t, int64(42), coerceValue("42", "integer"))
	assert.Equal(t, true, coerceValue("true", "bool"))
	assert.Equal(t, "not-a-number", coerceValue("not-a-number", "int")) // fallback to string
}

func TestTypeCoercionAutoInfer(t *testing.T) {
	assert.Equal(t, true, autoInfer("true"))
	assert.Equal(t, int64(7), autoInfer("7"))
	assert.Equal(t, 1.5, autoInfer("1.5"))
	assert.Equal(t, "plain", autoInfer("plain"))

	v := autoInfer(`{"a":1}`)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.0, m["a"])
}

func TestExtractToolUsesSurroundingTextPreserved(t *testing.T) {
	input := "before <ccp:tool_use><id>1</id><name>x</name><params></params></ccp:tool_use> after"
	segs := ExtractToolUses(input)
	require.Len(t, segs, 3)
	assert.Equal(t, "before ", segs[0].Text)
	assert.NotNil(t, segs[1].ToolUse)
	assert.Equal(t, " after", segs[2].Text)
}

func TestExtractToolUsesMissingNameIsParseError(t *testing.T) {
	input := "<ccp:tool_use><id>1</id><params></params></ccp:tool_use>"
	segs := ExtractToolUses(input)
	require.Len(t, segs, 1)
	require.Nil(t, segs[0].ToolUse)
	require.NotNil(t, segs[0].Err)
	assert.False(t, segs[0].Err.ArgsOnly)
}

func TestGenerateToolsXMLOrdersRequiredThenOptionalAlphabetically(t *testing.T) {
	tools := []unified.UnifiedTool{{
		Name:        "get_weather",
		Description: "Look up current weather",
		InputSchema: []byte(`{"type":"object","properties":{"city":{"type":"string","description":"City name"},"units":{"type":"string","description":"Units"}},"required":["city"]}`),
	}}
	xmlStr := GenerateToolsXML(tools)
	assert.Contains(t, xmlStr, "<"+TagTools+">")
	assert.Contains(t, xmlStr, "<"+TagToolDefine+">")
	// "city" (required) must appear before "units" (optional).
	cityIdx := indexOf(xmlStr, `name="city"`)
	unitsIdx := indexOf(xmlStr, `name="units"`)
	require.NotEqual(t, -1, cityIdx)
	require.NotEqual(t, -1, unitsIdx)
	assert.Less(t, cityIdx, unitsIdx)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
