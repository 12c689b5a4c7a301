// Package redaction scrubs secrets and PII out of log messages and
// structured fields before they reach internal/logging's sink, matching the
// teacher's own pkg/redaction ambient logging concern.
package redaction

import (
	"regexp"
	"strings"
	"sync"
)

// Config toggles which categories of sensitive data a Scrubber removes.
type Config struct {
	Enabled       bool
	Secrets       bool
	Passwords     bool
	Emails        bool
	PhoneNumbers  bool
	IPAddresses   bool
	CustomPattern []string
	Mask          string
}

// DefaultConfig enables every category except IP addresses, which are
// useful diagnostic information more often than they are sensitive.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		Secrets:      true,
		Passwords:    true,
		Emails:       true,
		PhoneNumbers: true,
		IPAddresses:  false,
		Mask:         "[REDACTED]",
	}
}

var namedPatterns = map[string]*regexp.Regexp{
	"secret":         regexp.MustCompile(`(?i)(api[_-]?key|api[_-]?secret|secret[_-]?key|auth[_-]?token|access[_-]?token|refresh[_-]?token|private[_-]?key)\s*[=:]\s*['"]?([a-zA-Z0-9_\-.]{20,})['"]?`),
	"bearer":         regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9_\-.]{20,})`),
	"openai_key":     regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	"anthropic_key":  regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
	"jwt":            regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),
	"aws_access_key": regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	"json_secret":    regexp.MustCompile(`"(?:api_key|apikey|secret|password|token|private_key)"\s*:\s*"([^"]+)"`),
	"password":       regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[=:]\s*['"]?([^'"\s]{4,})['"]?`),
	"email":          regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	"phone":          regexp.MustCompile(`\+?\d[\d\s\-().]{8,}\d`),
	"ipv4":           regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`),
}

var sensitiveKeyMarkers = []string{
	"password", "passwd", "pwd", "secret", "token", "credential",
	"api_key", "apikey", "private_key", "access_key",
}

// Scrubber replaces sensitive substrings in log messages and field values.
// Safe for concurrent use.
type Scrubber struct {
	mu      sync.RWMutex
	cfg     Config
	custom  []*regexp.Regexp
}

// NewScrubber builds a Scrubber from cfg, compiling any custom patterns.
func NewScrubber(cfg Config) *Scrubber {
	s := &Scrubber{cfg: cfg}
	for _, p := range cfg.CustomPattern {
		if re, err := regexp.Compile(p); err == nil {
			s.custom = append(s.custom, re)
		}
	}
	return s
}

// Scrub redacts every configured category of sensitive text found in msg.
func (s *Scrubber) Scrub(msg string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.cfg.Enabled {
		return msg
	}

	out := msg
	if s.cfg.Secrets {
		out = replaceCaptured(out, s.cfg.Mask, namedPatterns["secret"], namedPatterns["bearer"],
			namedPatterns["openai_key"], namedPatterns["anthropic_key"], namedPatterns["jwt"], namedPatterns["aws_access_key"])
		out = replaceJSONSecret(out, s.cfg.Mask)
	}
	if s.cfg.Passwords {
		out = replaceCaptured(out, s.cfg.Mask, namedPatterns["password"])
	}
	if s.cfg.Emails {
		out = namedPatterns["email"].ReplaceAllStringFunc(out, maskEmail)
	}
	if s.cfg.PhoneNumbers {
		out = namedPatterns["phone"].ReplaceAllString(out, s.cfg.Mask)
	}
	if s.cfg.IPAddresses {
		out = namedPatterns["ipv4"].ReplaceAllString(out, s.cfg.Mask)
	}
	for _, re := range s.custom {
		out = re.ReplaceAllString(out, s.cfg.Mask)
	}
	return out
}

// ScrubFields returns a copy of fields with sensitive values replaced: a
// field whose key name looks sensitive (e.g. "api_key", "password") is
// masked outright, string values are run through Scrub, and nested maps
// are scrubbed recursively.
func (s *Scrubber) ScrubFields(fields map[string]any) map[string]any {
	s.mu.RLock()
	enabled := s.cfg.Enabled
	mask := s.cfg.Mask
	s.mu.RUnlock()
	if !enabled || fields == nil {
		return fields
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if isSensitiveKey(k) {
			out[k] = mask
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = s.Scrub(val)
		case map[string]any:
			out[k] = s.ScrubFields(val)
		default:
			out[k] = v
		}
	}
	return out
}

// SetEnabled toggles scrubbing at runtime without rebuilding the Scrubber.
func (s *Scrubber) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Enabled = enabled
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range sensitiveKeyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "[REDACTED]"
	}
	return email[:1] + "***" + email[at:]
}

func replaceCaptured(input, mask string, patterns ...*regexp.Regexp) string {
	out := input
	for _, re := range patterns {
		out = re.ReplaceAllStringFunc(out, func(match string) string {
			sub := re.FindStringSubmatch(match)
			if len(sub) <= 1 {
				return mask
			}
			redacted := match
			for i := len(sub) - 1; i >= 1; i-- {
				if sub[i] != "" {
					redacted = strings.Replace(redacted, sub[i], mask, 1)
				}
			}
			return redacted
		})
	}
	return out
}

func replaceJSONSecret(input, mask string) string {
	re := namedPatterns["json_secret"]
	return re.ReplaceAllStringFunc(input, func(match string) string {
		sub := re.FindStringSubmatch(match)
		if len(sub) > 1 {
			return strings.Replace(match, sub[1], mask, 1)
		}
		return match
	})
}

var (
	globalMu sync.RWMutex
	global   = NewScrubber(DefaultConfig())
)

// Scrub redacts msg using the package-level default Scrubber.
func Scrub(msg string) string {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global.Scrub(msg)
}

// ScrubFields redacts fields using the package-level default Scrubber.
func ScrubFields(fields map[string]any) map[string]any {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global.ScrubFields(fields)
}

// SetGlobalConfig replaces the package-level default Scrubber's config.
func SetGlobalConfig(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = NewScrubber(cfg)
}
