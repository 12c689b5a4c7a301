package providers

import "strings"

// ModelRef is a resolved (provider, model) pair.
type ModelRef struct {
	Provider string
	Model    string
}

// ParseModelRef splits a "provider:model" string, or treats the whole
// string as a model on defaultProvider if there is no colon.
func ParseModelRef(raw, defaultProvider string) ModelRef {
	if idx := strings.Index(raw, ":"); idx >= 0 {
		return ModelRef{Provider: raw[:idx], Model: raw[idx+1:]}
	}
	return ModelRef{Provider: defaultProvider, Model: raw}
}

func (r ModelRef) String() string { return r.Provider + ":" + r.Model }

// AliasResolver resolves symbolic aliases (fast, smart, reasoning, ...) to
// concrete (provider, model) pairs, falling back to a configured default
// model when an alias is unknown (spec.md §4.2).
type AliasResolver struct {
	aliases         map[string]string
	defaultModel    string
	defaultProvider string
}

// NewAliasResolver builds a resolver from a config-supplied alias map.
func NewAliasResolver(aliases map[string]string, defaultModel, defaultProvider string) *AliasResolver {
	cp := make(map[string]string, len(aliases))
	for k, v := range aliases {
		cp[k] = v
	}
	return &AliasResolver{aliases: cp, defaultModel: defaultModel, defaultProvider: defaultProvider}
}

// Resolve turns an alias or a direct "provider:model" string into a ModelRef.
func (r *AliasResolver) Resolve(alias string) ModelRef {
	if mapped, ok := r.aliases[alias]; ok {
		return ParseModelRef(mapped, r.defaultProvider)
	}
	if strings.Contains(alias, ":") {
		return ParseModelRef(alias, r.defaultProvider)
	}
	return ParseModelRef(r.defaultModel, r.defaultProvider)
}

// IsSelectable reports whether alias is on the given whitelist, used by the
// select_llm action to reject arbitrary aliases (spec.md §4.3).
func IsSelectable(alias string, whitelist []string) bool {
	for _, a := range whitelist {
		if a == alias {
			return true
		}
	}
	return false
}
