// Package setup implements the interactive configuration form behind
// `mountie setup`.
package setup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/kastheco/mountie/config"
	"github.com/kastheco/mountie/ui/overlay"
)

// ErrAborted is returned when the form is closed without submitting.
var ErrAborted = errors.New("setup aborted")

const (
	minTickMs = 10
	maxTickMs = 1000
)

// values holds the form fields. Numbers are edited as text.
type values struct {
	polkitAgent   bool
	polkitHelper  string
	preferredUser string
	tickMs        string
	maxRestarts   int
	audit         bool
	telemetry     bool
	sentryDSN     string
}

func fromConfig(cfg *config.Config) values {
	return values{
		polkitAgent:   cfg.PolkitAgent,
		polkitHelper:  cfg.PolkitHelper,
		preferredUser: cfg.PreferredUser,
		tickMs:        strconv.Itoa(cfg.TickIntervalMs),
		maxRestarts:   cfg.MaxRestarts,
		audit:         cfg.AuditEnabled,
		telemetry:     cfg.TelemetryEnabled,
		sentryDSN:     cfg.SentryDSN,
	}
}

// apply writes the form values into a copy of cfg.
func (v values) apply(cfg *config.Config) (*config.Config, error) {
	if err := validateTick(v.tickMs); err != nil {
		return nil, err
	}
	if err := validateHelper(v.polkitHelper); err != nil {
		return nil, err
	}
	tick, _ := strconv.Atoi(strings.TrimSpace(v.tickMs))

	out := *cfg
	out.PolkitAgent = v.polkitAgent
	out.PolkitHelper = strings.TrimSpace(v.polkitHelper)
	out.PreferredUser = strings.TrimSpace(v.preferredUser)
	out.TickIntervalMs = tick
	out.MaxRestarts = max(v.maxRestarts, 0)
	out.AuditEnabled = v.audit
	out.TelemetryEnabled = v.telemetry
	out.SentryDSN = strings.TrimSpace(v.sentryDSN)
	return &out, nil
}

func validateTick(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("tick interval must be a number of milliseconds")
	}
	if n < minTickMs || n > maxTickMs {
		return fmt.Errorf("tick interval must be between %d and %d ms", minTickMs, maxTickMs)
	}
	return nil
}

// validateHelper accepts an empty path (auto-detect) or an absolute path to
// an existing file.
func validateHelper(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !filepath.IsAbs(s) {
		return fmt.Errorf("helper path must be absolute")
	}
	info, err := os.Stat(s)
	if err != nil {
		return fmt.Errorf("helper not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", s)
	}
	return nil
}

func newForm(v *values) *huh.Form {
	agent := huh.NewGroup(
		huh.NewNote().
			Title("mountie setup").
			Description("Settings are saved to "+config.ConfigFileName+" in the config directory."),
		huh.NewConfirm().
			Title("Run the polkit authentication agent?").
			Description("Answers password prompts for mounting and unlocking while mountie runs.").
			Affirmative("Yes").
			Negative("No").
			Value(&v.polkitAgent),
		huh.NewInput().
			Title("Preferred user").
			Description("Identity to authenticate as when polkit offers several. Empty picks the first.").
			Value(&v.preferredUser),
		huh.NewInput().
			Title("polkit helper").
			Description("Path to polkit-agent-helper-1. Empty to detect it.").
			Validate(validateHelper).
			Value(&v.polkitHelper),
	).Title("Authentication")

	loop := huh.NewGroup(
		huh.NewInput().
			Title("Tick interval (ms)").
			Description("How often results of background operations are applied.").
			Validate(validateTick).
			Value(&v.tickMs),
		huh.NewSelect[int]().
			Title("Restarts after an interface crash").
			Options(huh.NewOptions(0, 1, 2, 3, 5, 10)...).
			Value(&v.maxRestarts),
	).Title("Interface")

	logging := huh.NewGroup(
		huh.NewConfirm().
			Title("Keep an audit log?").
			Description("Records mounts, unmounts and authentication requests. Never passwords.").
			Value(&v.audit),
		huh.NewConfirm().
			Title("Send crash reports?").
			Value(&v.telemetry),
		huh.NewInput().
			Title("Sentry DSN").
			Description("Only used when crash reports are enabled.").
			Value(&v.sentryDSN),
	).Title("Logging")

	return huh.NewForm(agent, loop, logging).WithTheme(overlay.FormTheme())
}

// Run shows the form pre-filled from cfg and returns the edited config. cfg
// itself is not modified.
func Run(ctx context.Context, cfg *config.Config) (*config.Config, error) {
	v := fromConfig(cfg)
	if err := newForm(&v).RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, ErrAborted
		}
		return nil, fmt.Errorf("setup form: %w", err)
	}
	return v.apply(cfg)
}
