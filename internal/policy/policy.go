// Package policy holds the table that maps proctoring event types to severities.
//
// The table ships with built-in defaults and can be overridden per deployment
// and per institute from a YAML file, which is re-read whenever it changes:
//
//	default:
//	  tab_switch: high
//	institutes:
//	  8a0c2f0e-1111-4c55-9d8e-3b2f5e0a6c11:
//	    focus_loss: medium
package policy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stemsi/exstem-integrity/internal/model"
)

// Table maps each event type to its severity.
type Table map[model.EventType]model.Severity

// DefaultTable returns the built-in severity assignments.
func DefaultTable() Table {
	return Table{
		model.EventTabSwitch:        model.SeverityMedium,
		model.EventFullscreenExit:   model.SeverityHigh,
		model.EventCopyAttempt:      model.SeverityMedium,
		model.EventPasteAttempt:     model.SeverityMedium,
		model.EventRightClick:       model.SeverityLow,
		model.EventContextMenu:      model.SeverityLow,
		model.EventDevToolsOpen:     model.SeverityHigh,
		model.EventMultipleSessions: model.SeverityCritical,
		model.EventKeyboardShortcut: model.SeverityLow,
		model.EventFocusLoss:        model.SeverityLow,
	}
}

// Policy resolves severities. It is safe for concurrent use.
type Policy struct {
	mu         sync.RWMutex
	base       Table
	institutes map[uuid.UUID]Table

	v   *viper.Viper
	log zerolog.Logger
}

// New returns a policy backed only by the built-in defaults.
func New(log zerolog.Logger) *Policy {
	return &Policy{
		base:       DefaultTable(),
		institutes: map[uuid.UUID]Table{},
		log:        log.With().Str("component", "severity_policy").Logger(),
	}
}

// Load reads overrides from path and keeps watching it. A change that fails
// to parse is logged and the previous table stays in effect.
func Load(path string, log zerolog.Logger) (*Policy, error) {
	p, err := open(path, log)
	if err != nil {
		return nil, err
	}
	if p.v == nil {
		return p, nil
	}

	p.v.OnConfigChange(func(e fsnotify.Event) {
		if err := p.reload(); err != nil {
			p.log.Error().Err(err).Str("file", e.Name).Msg("Severity policy reload rejected")
			return
		}
		p.log.Info().Str("file", e.Name).Msg("Severity policy reloaded")
	})
	p.v.WatchConfig()

	p.log.Info().Str("file", path).Int("institute_overrides", len(p.institutes)).Msg("Severity policy loaded")
	return p, nil
}

func open(path string, log zerolog.Logger) (*Policy, error) {
	p := New(log)
	if path == "" {
		return p, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read severity policy %s: %w", path, err)
	}
	p.v = v
	if err := p.reload(); err != nil {
		return nil, err
	}
	return p, nil
}

type fileLayout struct {
	Default    map[string]string            `mapstructure:"default"`
	Institutes map[string]map[string]string `mapstructure:"institutes"`
}

func (p *Policy) reload() error {
	var raw fileLayout
	if err := p.v.Unmarshal(&raw); err != nil {
		return fmt.Errorf("decode severity policy: %w", err)
	}

	base := DefaultTable()
	if err := apply(base, raw.Default); err != nil {
		return fmt.Errorf("default: %w", err)
	}

	institutes := make(map[uuid.UUID]Table, len(raw.Institutes))
	for key, overrides := range raw.Institutes {
		id, err := uuid.Parse(key)
		if err != nil {
			return fmt.Errorf("institute %q: %w", key, err)
		}
		t := Table{}
		if err := apply(t, overrides); err != nil {
			return fmt.Errorf("institute %s: %w", id, err)
		}
		institutes[id] = t
	}

	p.mu.Lock()
	p.base = base
	p.institutes = institutes
	p.mu.Unlock()
	return nil
}

func apply(dst Table, overrides map[string]string) error {
	for k, v := range overrides {
		et := model.EventType(strings.ToLower(strings.TrimSpace(k)))
		if !et.Valid() {
			return fmt.Errorf("unknown event type %q", k)
		}
		sev := model.Severity(strings.ToLower(strings.TrimSpace(v)))
		if !sev.Valid() {
			return fmt.Errorf("unknown severity %q for %s", v, et)
		}
		dst[et] = sev
	}
	return nil
}

// Severity returns the severity for eventType under instituteID's policy.
// ok is false for an unknown event type.
func (p *Policy) Severity(instituteID uuid.UUID, eventType model.EventType) (model.Severity, bool) {
	if !eventType.Valid() {
		return "", false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if t, found := p.institutes[instituteID]; found {
		if sev, set := t[eventType]; set {
			return sev, true
		}
	}
	sev, ok := p.base[eventType]
	return sev, ok
}

// Effective returns the full table in force for instituteID.
func (p *Policy) Effective(instituteID uuid.UUID) Table {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(Table, len(p.base))
	for k, v := range p.base {
		out[k] = v
	}
	for k, v := range p.institutes[instituteID] {
		out[k] = v
	}
	return out
}
