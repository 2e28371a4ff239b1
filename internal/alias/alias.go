// Package alias resolves a client-facing model alias into an ordered
// provider/model target list, picks the next target via round-robin, and
// overrides that pick with a long-context target when the inbound
// request's token count crosses a configured threshold.
package alias

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/aidyou/llmrouter/internal/config"
	"github.com/aidyou/llmrouter/internal/rotator"
)

// Target is a resolved (provider, model) pair ready to hand to a Backend
// Adapter, plus the routing metadata the Dispatcher needs alongside it.
type Target struct {
	Provider       config.Provider
	Model          string
	Group          string
	ToolCompatMode bool
}

// Resolver resolves aliases against a config snapshot and rotates targets
// and keys through a shared Rotator.
type Resolver struct {
	cfgMgr  *config.Manager
	rotator *rotator.Rotator

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

func NewResolver(cfgMgr *config.Manager, r *rotator.Rotator) *Resolver {
	return &Resolver{cfgMgr: cfgMgr, rotator: r}
}

// providerIndex gives every configured provider a stable 1-based ID
// derived from its position in the config's Providers slice, since the
// rotator's composite-key mapping is keyed by a numeric provider ID and
// human-edited YAML configs name providers by string instead.
func providerIndex(cfg *config.Config) map[string]int64 {
	idx := make(map[string]int64, len(cfg.Providers))
	for i, p := range cfg.Providers {
		if p.ID != 0 {
			idx[p.Name] = p.ID
			continue
		}
		idx[p.Name] = int64(i + 1)
	}
	return idx
}

func findProvider(cfg *config.Config, name string) (config.Provider, bool) {
	for _, p := range cfg.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return config.Provider{}, false
}

// RebuildPools pushes every provider's current key list into the Rotator
// for every alias group currently configured. Wired as the config
// Manager's OnReload callback so a hot config reload rebuilds rotation
// state instead of requiring a process restart.
func (res *Resolver) RebuildPools(cfg *config.Config) {
	ids := providerIndex(cfg)
	for aliasName, al := range cfg.Aliases {
		group := al.Group
		composite := rotator.CompositeKey(group, aliasName)
		for _, t := range al.Targets {
			provider, ok := findProvider(cfg, t.Provider)
			if !ok {
				continue
			}
			res.rotator.UpdateProviderKeysEfficient(composite, ids[t.Provider], provider.APIBase, t.Model, provider.Keys())
		}
	}
}

// Resolve looks up an alias, picks its next target by round-robin, and
// returns the provider/model/group/tool-compat bundle the Dispatcher
// needs. requestTokens is the already-counted token length of the
// inbound request body; when it exceeds the config's
// LongContextTokenThreshold and the alias has a LongContext override, that
// override wins over the round-robin pick.
func (res *Resolver) Resolve(aliasName string, requestTokens int) (Target, error) {
	cfg := res.cfgMgr.Get()

	al, ok := cfg.Aliases[aliasName]
	if !ok {
		return Target{}, fmt.Errorf("alias %q is not configured", aliasName)
	}
	if len(al.Targets) == 0 {
		return Target{}, fmt.Errorf("alias %q has no targets", aliasName)
	}

	toolCompat := false
	if al.ToolCompatMode != nil {
		toolCompat = *al.ToolCompatMode
	}

	if requestTokens > cfg.LongContextTokenThreshold && al.LongContext != nil {
		provider, ok := findProvider(cfg, al.LongContext.Provider)
		if !ok {
			return Target{}, fmt.Errorf("alias %q long_context provider %q is not configured", aliasName, al.LongContext.Provider)
		}
		return Target{Provider: provider, Model: al.LongContext.Model, Group: al.Group, ToolCompatMode: toolCompat}, nil
	}

	composite := rotator.CompositeKey(al.Group, aliasName)
	idx := res.rotator.NextTargetIndex(composite, len(al.Targets))
	picked := al.Targets[idx]

	provider, ok := findProvider(cfg, picked.Provider)
	if !ok {
		return Target{}, fmt.Errorf("alias %q target provider %q is not configured", aliasName, picked.Provider)
	}

	return Target{Provider: provider, Model: picked.Model, Group: al.Group, ToolCompatMode: toolCompat || provider.ToolCompatMode}, nil
}

// NextKey rotates to the next (provider, key) tuple for the alias's
// composite key from the Global Key Rotator's pool.
func (res *Resolver) NextKey(aliasName, group string) (rotator.GlobalApiKey, bool) {
	return res.rotator.NextGlobalKey(rotator.CompositeKey(group, aliasName))
}

// ClassicSlot resolves one of the five conventional routing slots
// (default/think/background/longContext/webSearch) against a model
// string and the request's token count: long-context first, then a
// background-model heuristic, then an always-on think override, then web
// search, falling back to the presented model or the default alias.
func ClassicSlot(r config.RouterConfig, presentedModel string, tokens int, threshold int) string {
	if tokens > threshold && r.LongContext != "" {
		return r.LongContext
	}
	if strings.HasPrefix(presentedModel, "claude-3-5-haiku") && r.Background != "" {
		return r.Background
	}
	if r.Think != "" {
		return r.Think
	}
	if r.WebSearch != "" {
		return r.WebSearch
	}
	if presentedModel != "" {
		return presentedModel
	}
	return r.Default
}

// CountTokens returns the cl100k_base token count of text, used to decide
// whether a request crosses the long-context threshold. Returns 0 (never
// triggering the long-context override) if the encoding cannot be loaded.
func (res *Resolver) CountTokens(text string) int {
	res.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			res.enc = enc
		}
	})
	if res.enc == nil {
		return 0
	}
	return len(res.enc.Encode(text, nil, nil))
}
