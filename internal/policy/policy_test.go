package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/model"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "severity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsCoverEveryEventType(t *testing.T) {
	p := New(zerolog.Nop())
	for _, et := range model.AllEventTypes {
		sev, ok := p.Severity(uuid.New(), et)
		require.True(t, ok, et)
		require.True(t, sev.Valid(), et)
	}

	sev, _ := p.Severity(uuid.Nil, model.EventMultipleSessions)
	require.Equal(t, model.SeverityCritical, sev)
	sev, _ = p.Severity(uuid.Nil, model.EventTabSwitch)
	require.Equal(t, model.SeverityMedium, sev)
	sev, _ = p.Severity(uuid.Nil, model.EventFullscreenExit)
	require.Equal(t, model.SeverityHigh, sev)
	sev, _ = p.Severity(uuid.Nil, model.EventFocusLoss)
	require.Equal(t, model.SeverityLow, sev)
}

func TestUnknownEventType(t *testing.T) {
	p := New(zerolog.Nop())
	_, ok := p.Severity(uuid.New(), "screen_share")
	require.False(t, ok)
}

func TestLoadAppliesOverrides(t *testing.T) {
	inst := uuid.New()
	path := writePolicy(t, t.TempDir(), `
default:
  tab_switch: high
institutes:
  `+inst.String()+`:
    focus_loss: medium
`)

	p, err := Load(path, zerolog.Nop())
	require.NoError(t, err)

	sev, _ := p.Severity(uuid.New(), model.EventTabSwitch)
	require.Equal(t, model.SeverityHigh, sev)

	sev, _ = p.Severity(inst, model.EventFocusLoss)
	require.Equal(t, model.SeverityMedium, sev)
	sev, _ = p.Severity(uuid.New(), model.EventFocusLoss)
	require.Equal(t, model.SeverityLow, sev)

	eff := p.Effective(inst)
	require.Equal(t, model.SeverityHigh, eff[model.EventTabSwitch])
	require.Equal(t, model.SeverityMedium, eff[model.EventFocusLoss])
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()

	_, err := open(writePolicy(t, dir, "default:\n  teleport: high\n"), zerolog.Nop())
	require.Error(t, err)

	_, err = open(writePolicy(t, dir, "default:\n  tab_switch: apocalyptic\n"), zerolog.Nop())
	require.Error(t, err)

	_, err = open(writePolicy(t, dir, "institutes:\n  not-a-uuid:\n    tab_switch: low\n"), zerolog.Nop())
	require.Error(t, err)
}

func TestReloadKeepsPreviousTableOnError(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, "default:\n  right_click: medium\n")

	p, err := open(path, zerolog.Nop())
	require.NoError(t, err)

	writePolicy(t, dir, "default:\n  right_click: nonsense\n")
	require.NoError(t, p.v.ReadInConfig())
	require.Error(t, p.reload())

	sev, _ := p.Severity(uuid.New(), model.EventRightClick)
	require.Equal(t, model.SeverityMedium, sev)

	writePolicy(t, dir, "default:\n  right_click: critical\n")
	require.NoError(t, p.v.ReadInConfig())
	require.NoError(t, p.reload())

	sev, _ = p.Severity(uuid.New(), model.EventRightClick)
	require.Equal(t, model.SeverityCritical, sev)
}
