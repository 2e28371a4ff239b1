package alias

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidyou/llmrouter/internal/config"
	"github.com/aidyou/llmrouter/internal/rotator"
)

func newTestResolver(t *testing.T, cfg *config.Config) (*Resolver, *config.Manager) {
	t.Helper()
	mgr := config.NewManager(t.TempDir())
	r := rotator.New()
	res := NewResolver(mgr, r)
	mgr.OnReload(res.RebuildPools)
	require.NoError(t, mgr.Save(cfg))
	return res, mgr
}

func baseConfig() *config.Config {
	return &config.Config{
		Providers: []config.Provider{
			{Name: "openai", APIBase: "https://api.openai.com/v1", APIKey: "k1\nk2"},
			{Name: "anthropic", APIBase: "https://api.anthropic.com", APIKey: "k3"},
		},
		Aliases: map[string]config.Alias{
			"default": {Targets: []config.AliasTarget{
				{Provider: "openai", Model: "gpt-4o"},
				{Provider: "anthropic", Model: "claude-3-5-sonnet-20241022"},
			}},
		},
		LongContextTokenThreshold: 60000,
	}
}

func TestResolver_ResolveRoundRobinsAcrossTargets(t *testing.T) {
	res, _ := newTestResolver(t, baseConfig())

	first, err := res.Resolve("default", 10)
	require.NoError(t, err)
	second, err := res.Resolve("default", 10)
	require.NoError(t, err)

	assert.NotEqual(t, first.Provider.Name, second.Provider.Name)
}

func TestResolver_ResolveUnknownAliasErrors(t *testing.T) {
	res, _ := newTestResolver(t, baseConfig())
	_, err := res.Resolve("missing", 0)
	assert.Error(t, err)
}

func TestResolver_LongContextOverridesRoundRobin(t *testing.T) {
	cfg := baseConfig()
	al := cfg.Aliases["default"]
	al.LongContext = &config.AliasTarget{Provider: "anthropic", Model: "claude-3-5-sonnet-20241022"}
	cfg.Aliases["default"] = al

	res, _ := newTestResolver(t, cfg)

	target, err := res.Resolve("default", 70000)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", target.Provider.Name)
}

func TestResolver_RebuildPoolsFeedsRotatorKeys(t *testing.T) {
	res, mgr := newTestResolver(t, baseConfig())
	_ = mgr

	key, ok := res.NextKey("default", "")
	require.True(t, ok)
	assert.Contains(t, []string{"k1", "k2", "k3"}, key.Key)
}

func TestClassicSlot_LongContextWinsOverDefault(t *testing.T) {
	r := config.RouterConfig{Default: "default", LongContext: "longctx"}
	slot := ClassicSlot(r, "claude-3-5-sonnet", 70000, 60000)
	assert.Equal(t, "longctx", slot)
}

func TestClassicSlot_BackgroundHeuristicMatchesHaikuModel(t *testing.T) {
	r := config.RouterConfig{Background: "bg"}
	slot := ClassicSlot(r, "claude-3-5-haiku-20241022", 10, 60000)
	assert.Equal(t, "bg", slot)
}

func TestClassicSlot_FallsBackToPresentedModelThenDefault(t *testing.T) {
	r := config.RouterConfig{Default: "default"}
	assert.Equal(t, "my-alias", ClassicSlot(r, "my-alias", 10, 60000))
	assert.Equal(t, "default", ClassicSlot(r, "", 10, 60000))
}

func TestResolver_CountTokensReturnsNonNegativeLength(t *testing.T) {
	res, _ := newTestResolver(t, baseConfig())
	n := res.CountTokens("hello world, this is a test of token counting")
	assert.GreaterOrEqual(t, n, 0)
}
