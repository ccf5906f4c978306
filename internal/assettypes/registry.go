package assettypes

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// codeTokens is the built-in mapping from the short prefixes users type to
// the remote system's asset type tokens. Canonical tokens also resolve as
// their own codes, so "Story-123" style references work too.
var codeTokens = [][2]string{
	{"AT", "Test"},
	{"B", "Story"},
	{"D", "Defect"},
	{"E", "Epic"},
	{"FG", "Theme"},
	{"G", "Goal"},
	{"I", "Issue"},
	{"R", "Request"},
	{"RD", "Roadmap"},
	{"RP", "RegressionPlan"},
	{"RS", "RegressionSuite"},
	{"RT", "RegressionTest"},
	{"S", "Story"},
	{"ST", "StrategicTheme"},
	{"T", "Topic"},
	{"TH", "Theme"},
	{"TK", "Task"},
	{"TS", "TestSet"},
}

// LocalizationSource resolves display names for a batch of asset type tokens.
type LocalizationSource interface {
	Localizations(ctx context.Context, tokens []string) (map[string]string, error)
}

// Registry maps short type codes to asset type tokens and serves localized
// display names on a best-effort basis. Safe for concurrent use.
type Registry struct {
	mu            sync.RWMutex
	codes         map[string]string
	localizations map[string]string
	tokens        []string
	logger        *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{
		codes:         make(map[string]string),
		localizations: make(map[string]string),
		logger:        logger,
	}
	for _, pair := range codeTokens {
		r.register(pair[0], pair[1])
	}
	return r
}

func (r *Registry) register(code, token string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	token = strings.TrimSpace(token)
	if code == "" || token == "" {
		return
	}
	r.codes[code] = token
	upperToken := strings.ToUpper(token)
	if _, exists := r.codes[upperToken]; !exists {
		r.codes[upperToken] = token
	}
	for _, known := range r.tokens {
		if known == token {
			return
		}
	}
	r.tokens = append(r.tokens, token)
}

// Lookup resolves a type code to its asset type token, case-insensitively.
func (r *Registry) Lookup(code string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.codes[strings.ToUpper(strings.TrimSpace(code))]
	return token, ok
}

// Localize returns the display name for a token, falling back to the token
// itself when localization has not arrived or omitted it.
func (r *Registry) Localize(token string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.localizations[token]; ok && name != "" {
		return name
	}
	return token
}

// Tokens returns the known asset type tokens in registration order.
func (r *Registry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.tokens))
	copy(out, r.tokens)
	return out
}

// NumberFields derives the per-type number field identifiers used to build
// multi-type search queries.
func (r *Registry) NumberFields() []string {
	tokens := r.Tokens()
	fields := make([]string, 0, len(tokens))
	for _, token := range tokens {
		fields = append(fields, token+".Number")
	}
	return fields
}

// ApplyOverrides merges extra code mappings, typically from the overrides
// file. Unknown tokens become searchable types of their own.
func (r *Registry) ApplyOverrides(overrides map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for code, token := range overrides {
		r.register(code, token)
	}
}

// Refresh fetches localized display names for every known token. Failures
// are logged and leave the current names untouched; the registry never
// blocks on localization.
func (r *Registry) Refresh(ctx context.Context, source LocalizationSource) {
	if source == nil {
		return
	}
	names, err := source.Localizations(ctx, r.Tokens())
	if err != nil {
		r.logger.Error("localization fetch failed", "error", err)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		r.localizations[token] = name
	}
	r.logger.Info("localizations loaded", "count", len(names))
}
