package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = 6970
	DefaultConfigFilename = "config.json"
	DefaultYAMLFilename   = "config.yaml"
	DefaultHost           = "127.0.0.1"

	// EnvAPIKey, when set and no config file exists, lets the Router start
	// with the five example providers, all reading their key from the
	// environment instead of a config file.
	EnvAPIKey = "LLMROUTER_API_KEY"
)

// Supported api_protocol values. These select which Backend Adapter
// (internal/adapter/backend) and Output Adapter a provider entry uses.
const (
	ProtocolOpenAI      = "openai"
	ProtocolClaude      = "claude"
	ProtocolGemini      = "gemini"
	ProtocolOllama      = "ollama"
	ProtocolHuggingFace = "huggingface"
)

var (
	// DefaultProviderURLs gives each well-known provider name a base URL so
	// a minimal config entry (just name + api_key) is still usable.
	DefaultProviderURLs = map[string]string{
		"openrouter":  "https://openrouter.ai/api/v1",
		"openai":      "https://api.openai.com/v1",
		"anthropic":   "https://api.anthropic.com",
		"nvidia":      "https://integrate.api.nvidia.com/v1",
		"gemini":      "https://generativelanguage.googleapis.com",
		"ollama":      "http://localhost:11434",
		"huggingface": "https://api-inference.huggingface.co",
	}

	// DefaultProviderProtocols maps well-known provider names to the wire
	// protocol their base URL speaks, so a minimal config entry doesn't
	// need to spell out api_protocol redundantly.
	DefaultProviderProtocols = map[string]string{
		"openrouter":  ProtocolOpenAI,
		"openai":      ProtocolOpenAI,
		"anthropic":   ProtocolClaude,
		"nvidia":      ProtocolOpenAI,
		"gemini":      ProtocolGemini,
		"ollama":      ProtocolOllama,
		"huggingface": ProtocolHuggingFace,
	}

	// DefaultProviderModels seeds each well-known provider with a starter
	// model list, used both for the example config and for alias targets
	// that don't pin an explicit model.
	DefaultProviderModels = map[string][]string{
		"openrouter": {
			"anthropic/claude-3.5-sonnet",
			"anthropic/claude-3-opus",
			"openai/gpt-4-turbo",
			"openai/gpt-4o",
		},
		"openai": {
			"gpt-4o",
			"gpt-4-turbo",
			"gpt-4",
			"gpt-3.5-turbo",
		},
		"anthropic": {
			"claude-3-5-sonnet-20241022",
			"claude-3-opus-20240229",
			"claude-3-haiku-20240307",
		},
		"nvidia": {
			"nvidia/llama-3.1-nemotron-70b-instruct",
			"nvidia/llama-3.1-nemotron-51b-instruct",
		},
		"gemini": {
			"gemini-2.0-flash",
			"gemini-1.5-pro",
			"gemini-1.5-flash",
		},
		"ollama": {
			"llama3.1",
			"qwen2.5",
		},
	}
)

// Provider is one upstream backend: a name, the wire protocol it speaks,
// its base URL, and the pool of API keys the rotator round-robins across.
// APIKey holds the raw config value (newline- or comma-separated); Keys()
// splits it into the slice the rotator actually consumes.
type Provider struct {
	ID             int64    `json:"id,omitempty" yaml:"id,omitempty"`
	Name           string   `json:"name" yaml:"name"`
	APIProtocol    string   `json:"api_protocol,omitempty" yaml:"api_protocol,omitempty"`
	APIBase        string   `json:"api_base_url" yaml:"url,omitempty"`
	APIKey         string   `json:"api_key" yaml:"api_key,omitempty"`
	Models         []string `json:"models" yaml:"models,omitempty"`
	ModelWhitelist []string `json:"model_whitelist,omitempty" yaml:"model_whitelist,omitempty"`
	DefaultModels  []string `json:"default_models,omitempty" yaml:"default_models,omitempty"`
	ToolCompatMode bool     `json:"tool_compat_mode,omitempty" yaml:"tool_compat_mode,omitempty"`
}

// Keys splits the provider's api_key field into the list the Global Key
// Rotator rotates across. Keys may be separated by newlines or commas;
// blank entries are dropped.
func (p *Provider) Keys() []string {
	fields := strings.FieldsFunc(p.APIKey, func(r rune) bool {
		return r == '\n' || r == ','
	})
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			keys = append(keys, f)
		}
	}
	return keys
}

// Protocol returns the provider's api_protocol, falling back to the
// well-known default for its name when unset.
func (p *Provider) Protocol() string {
	if p.APIProtocol != "" {
		return p.APIProtocol
	}
	return DefaultProviderProtocols[p.Name]
}

// AliasTarget is one entry in an alias's ordered backend list: which
// provider (by name) and which upstream model name to use.
type AliasTarget struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
}

// Alias groups an ordered list of targets the Target Picker rotates
// across, plus per-alias overrides for tool-compat emulation and the
// rotator's isolation group and a long-context override target that a
// token-count threshold on the inbound request can redirect into.
type Alias struct {
	Targets        []AliasTarget `json:"targets" yaml:"targets"`
	Group          string        `json:"group,omitempty" yaml:"group,omitempty"`
	ToolCompatMode *bool         `json:"tool_compat_mode,omitempty" yaml:"tool_compat_mode,omitempty"`
	LongContext    *AliasTarget  `json:"long_context,omitempty" yaml:"long_context,omitempty"`
}

// RouterConfig names aliases used for the classic five routing slots the
// teacher's Claude Code client requests by convention; these are looked up
// in the Aliases table like any other alias.
type RouterConfig struct {
	Default     string `json:"default" yaml:"default,omitempty"`
	Think       string `json:"think,omitempty" yaml:"think,omitempty"`
	Background  string `json:"background,omitempty" yaml:"background,omitempty"`
	LongContext string `json:"longContext,omitempty" yaml:"long_context,omitempty"`
	WebSearch   string `json:"webSearch,omitempty" yaml:"web_search,omitempty"`
}

// Config is the Router's full on-disk configuration: listen address,
// shared proxy access keys, the provider table, and the alias table that
// maps a client-facing model string onto an ordered list of providers.
type Config struct {
	Host      string           `json:"HOST,omitempty" yaml:"host,omitempty"`
	Port      int              `json:"PORT,omitempty" yaml:"port,omitempty"`
	APIKey    string           `json:"APIKEY,omitempty" yaml:"api_key,omitempty"`
	Providers []Provider       `json:"Providers" yaml:"providers"`
	Router    RouterConfig     `json:"Router" yaml:"router,omitempty"`
	Aliases   map[string]Alias `json:"aliases,omitempty" yaml:"aliases,omitempty"`

	// LongContextTokenThreshold is the cl100k_base token count above which
	// the Alias Resolver substitutes an alias's LongContext target.
	LongContextTokenThreshold int `json:"long_context_token_threshold,omitempty" yaml:"long_context_token_threshold,omitempty"`

	// DomainMappings is parsed from the config file and kept on the
	// snapshot; no request path reads it, so Host headers and path
	// prefixes do not change routing.
	DomainMappings map[string]string `json:"domain_mappings,omitempty" yaml:"domain_mappings,omitempty"`
}

// AccessKeys splits the shared proxy access-key field into the list client
// tokens are matched against. Keys may be separated by newlines or commas,
// the same convention Provider.Keys uses for upstream keys, so one proxy
// config can carry several valid client tokens (e.g. one per consumer).
func (c *Config) AccessKeys() []string {
	fields := strings.FieldsFunc(c.APIKey, func(r rune) bool {
		return r == '\n' || r == ','
	})
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			keys = append(keys, f)
		}
	}
	return keys
}

type Manager struct {
	baseDir     string
	jsonPath    string
	yamlPath    string
	configValue atomic.Value

	// onReload, when set, is called with the newly loaded config every
	// time Load or a watched file change replaces the in-memory config.
	// The Router wires this to rebuild the Global Key Rotator's pools.
	onReload func(*Config)
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		baseDir:  baseDir,
		jsonPath: filepath.Join(baseDir, DefaultConfigFilename),
		yamlPath: filepath.Join(baseDir, DefaultYAMLFilename),
	}
}

// OnReload registers a callback invoked after every successful (re)load.
func (m *Manager) OnReload(fn func(*Config)) {
	m.onReload = fn
}

// Watch blocks watching whichever config file is currently in use for
// writes, reloading and firing OnReload on every change, until stop is
// closed. Reload errors are logged and otherwise ignored so a transient
// bad write (e.g. a half-flushed save) never kills the watcher.
func (m *Manager) Watch(logger *slog.Logger, stop <-chan struct{}) error {
	path := m.jsonPath
	if m.HasYAML() {
		path = m.yamlPath
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("init config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if _, err := m.Load(); err != nil {
					logger.Error("reload config", "error", err)
				} else {
					logger.Info("config reloaded", "path", path)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher error", "error", err)
		}
	}
}

// createMinimalConfig creates a minimal configuration of five providers
// that share the key read from LLMROUTER_API_KEY, for zero-config smoke
// starts.
func (m *Manager) createMinimalConfig(apiKey string) Config {
	return Config{
		Host: DefaultHost,
		Port: DefaultPort,
		Providers: []Provider{
			{Name: "openrouter", APIKey: apiKey},
			{Name: "openai", APIKey: apiKey},
			{Name: "anthropic", APIKey: apiKey},
			{Name: "nvidia", APIKey: apiKey},
			{Name: "gemini", APIKey: apiKey},
		},
		Router: RouterConfig{
			Default:     "openrouter,anthropic/claude-3.5-sonnet",
			Think:       "openai,o1-preview",
			Background:  "anthropic,claude-3-haiku-20240307",
			LongContext: "anthropic,claude-3-5-sonnet-20241022",
			WebSearch:   "openrouter,perplexity/llama-3.1-sonar-huge-128k-online",
		},
	}
}

func (m *Manager) Load() (*Config, error) {
	var cfg Config
	var err error

	envAPIKey := os.Getenv(EnvAPIKey)

	// Try YAML first (takes precedence)
	if _, yamlErr := os.Stat(m.yamlPath); yamlErr == nil {
		cfg, err = m.loadYAML()
		if err != nil {
			return nil, fmt.Errorf("load YAML config: %w", err)
		}
	} else if _, jsonErr := os.Stat(m.jsonPath); jsonErr == nil {
		cfg, err = m.loadJSON()
		if err != nil {
			return nil, fmt.Errorf("load JSON config: %w", err)
		}
	} else if envAPIKey != "" {
		cfg = m.createMinimalConfig(envAPIKey)
	} else {
		return nil, fmt.Errorf("no configuration file found (looked for %s or %s) and %s environment variable not set", m.yamlPath, m.jsonPath, EnvAPIKey)
	}

	if err := m.applyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	m.configValue.Store(&cfg)
	if m.onReload != nil {
		m.onReload(&cfg)
	}
	return &cfg, nil
}

func (m *Manager) loadYAML() (Config, error) {
	var cfg Config

	data, err := os.ReadFile(m.yamlPath)
	if err != nil {
		return cfg, fmt.Errorf("read YAML config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal YAML config: %w", err)
	}

	return cfg, nil
}

func (m *Manager) loadJSON() (Config, error) {
	var cfg Config

	data, err := os.ReadFile(m.jsonPath)
	if err != nil {
		return cfg, fmt.Errorf("read JSON config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal JSON config: %w", err)
	}

	return cfg, nil
}

func (m *Manager) applyDefaults(cfg *Config) error {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.LongContextTokenThreshold == 0 {
		cfg.LongContextTokenThreshold = 60000
	}

	for i := range cfg.Providers {
		provider := &cfg.Providers[i]

		if provider.APIBase == "" {
			if defaultURL, exists := DefaultProviderURLs[provider.Name]; exists {
				provider.APIBase = defaultURL
			}
		}

		if provider.APIProtocol == "" {
			if proto, exists := DefaultProviderProtocols[provider.Name]; exists {
				provider.APIProtocol = proto
			}
		}

		if len(provider.DefaultModels) == 0 {
			if defaultModels, exists := DefaultProviderModels[provider.Name]; exists {
				provider.DefaultModels = make([]string, len(defaultModels))
				copy(provider.DefaultModels, defaultModels)
			}
		}

		if len(provider.ModelWhitelist) > 0 && len(provider.DefaultModels) > 0 {
			var filteredDefaults []string
			for _, model := range provider.DefaultModels {
				for _, whitelisted := range provider.ModelWhitelist {
					if strings.Contains(model, whitelisted) || model == whitelisted {
						filteredDefaults = append(filteredDefaults, model)
						break
					}
				}
			}
			provider.DefaultModels = filteredDefaults
		}
	}

	return nil
}

func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		return v.(*Config)
	}

	cfg, err := m.Load()
	if err != nil {
		return &Config{
			Host: DefaultHost,
			Port: DefaultPort,
		}
	}
	return cfg
}

func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal YAML config: %w", err)
	}

	if err := os.WriteFile(m.yamlPath, data, 0644); err != nil {
		return fmt.Errorf("write YAML config file: %w", err)
	}

	m.configValue.Store(cfg)
	if m.onReload != nil {
		m.onReload(cfg)
	}
	return nil
}

func (m *Manager) SaveAsYAML(cfg *Config) error {
	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal YAML config: %w", err)
	}

	if err := os.WriteFile(m.yamlPath, data, 0644); err != nil {
		return fmt.Errorf("write YAML config file: %w", err)
	}

	m.configValue.Store(cfg)
	return nil
}

func (m *Manager) SaveAsJSON(cfg *Config) error {
	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON config: %w", err)
	}

	if err := os.WriteFile(m.jsonPath, data, 0644); err != nil {
		return fmt.Errorf("write JSON config file: %w", err)
	}

	m.configValue.Store(cfg)
	return nil
}

func (m *Manager) GetPath() string {
	if _, err := os.Stat(m.yamlPath); err == nil {
		return m.yamlPath
	}
	return m.jsonPath
}

func (m *Manager) GetYAMLPath() string {
	return m.yamlPath
}

func (m *Manager) GetJSONPath() string {
	return m.jsonPath
}

func (m *Manager) Exists() bool {
	_, yamlErr := os.Stat(m.yamlPath)
	_, jsonErr := os.Stat(m.jsonPath)
	return yamlErr == nil || jsonErr == nil
}

func (m *Manager) HasYAML() bool {
	_, err := os.Stat(m.yamlPath)
	return err == nil
}

func (m *Manager) HasJSON() bool {
	_, err := os.Stat(m.jsonPath)
	return err == nil
}

// CreateExampleYAML creates an example YAML configuration with five
// example providers and a starter alias table.
func (m *Manager) CreateExampleYAML() error {
	cfg := &Config{
		Host:   DefaultHost,
		Port:   DefaultPort,
		APIKey: "your-proxy-api-key-here",
		Providers: []Provider{
			{
				Name:           "openrouter",
				APIKey:         "your-openrouter-api-key",
				ModelWhitelist: []string{"claude", "gpt-4"},
			},
			{
				Name:   "openai",
				APIKey: "your-openai-api-key",
			},
			{
				Name:   "anthropic",
				APIKey: "your-anthropic-api-key",
			},
			{
				Name:   "nvidia",
				APIKey: "your-nvidia-api-key",
			},
			{
				Name:   "gemini",
				APIKey: "your-gemini-api-key",
			},
		},
		Router: RouterConfig{
			Default:     "openrouter/anthropic/claude-3.5-sonnet",
			Think:       "openai/o1-preview",
			Background:  "anthropic/claude-3-haiku-20240307",
			LongContext: "anthropic/claude-3-5-sonnet-20241022",
			WebSearch:   "openrouter/perplexity/llama-3.1-sonar-huge-128k-online",
		},
		Aliases: map[string]Alias{
			"default": {Targets: []AliasTarget{{Provider: "openrouter", Model: "anthropic/claude-3.5-sonnet"}}},
			"think":   {Targets: []AliasTarget{{Provider: "openai", Model: "o1-preview"}}},
		},
	}

	if err := m.applyDefaults(cfg); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}

	return m.SaveAsYAML(cfg)
}

// IsModelAllowed checks if a model is allowed based on the provider's whitelist
func (p *Provider) IsModelAllowed(model string) bool {
	if len(p.ModelWhitelist) == 0 {
		return true
	}

	for _, whitelisted := range p.ModelWhitelist {
		if strings.Contains(model, whitelisted) || model == whitelisted {
			return true
		}
	}
	return false
}

// GetAllowedModels returns all models that are allowed based on the whitelist
func (p *Provider) GetAllowedModels() []string {
	if len(p.ModelWhitelist) == 0 {
		return p.DefaultModels
	}

	var allowed []string
	for _, model := range p.DefaultModels {
		if p.IsModelAllowed(model) {
			allowed = append(allowed, model)
		}
	}
	return allowed
}
