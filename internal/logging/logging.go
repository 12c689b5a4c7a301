// Package logging wraps zerolog with the field-tagged call shape the rest
// of the codebase uses: a component name, a message, and a flat field map.
package logging

import (
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sipeed/picoclaw-core/internal/redaction"
)

var (
	once sync.Once
	base zerolog.Logger
)

func root() *zerolog.Logger {
	once.Do(func() {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	})
	return &base
}

// SetLevel adjusts the global minimum level, e.g. "debug", "info", "warn".
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return
	}
	zerolog.SetGlobalLevel(lvl)
}

func withFields(evt *zerolog.Event, component string, fields map[string]any) *zerolog.Event {
	evt = evt.Str("component", component)
	for k, v := range redaction.ScrubFields(fields) {
		evt = evt.Interface(k, v)
	}
	return evt
}

// SetRedaction toggles whether log messages and fields are scrubbed for
// secrets/PII before being written. Enabled by default.
func SetRedaction(enabled bool) {
	redaction.SetGlobalConfig(redactionConfig(enabled))
}

func redactionConfig(enabled bool) redaction.Config {
	cfg := redaction.DefaultConfig()
	cfg.Enabled = enabled
	return cfg
}

// DebugCF logs a debug-level message tagged with a component and fields.
func DebugCF(component, msg string, fields map[string]any) {
	withFields(root().Debug(), component, fields).Msg(redaction.Scrub(msg))
}

// InfoCF logs an info-level message tagged with a component and fields.
func InfoCF(component, msg string, fields map[string]any) {
	withFields(root().Info(), component, fields).Msg(redaction.Scrub(msg))
}

// WarnCF logs a warn-level message tagged with a component and fields.
func WarnCF(component, msg string, fields map[string]any) {
	withFields(root().Warn(), component, fields).Msg(redaction.Scrub(msg))
}

// ErrorCF logs an error-level message tagged with a component and fields.
func ErrorCF(component, msg string, fields map[string]any) {
	withFields(root().Error(), component, fields).Msg(redaction.Scrub(msg))
}
