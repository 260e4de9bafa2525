package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"prepmate/internal/config"
	"prepmate/internal/transcript"
)

func TestNewWiresConfiguredStack(t *testing.T) {
	cfg := config.Default()
	cfg.Recognizer.APIKey = "dg-secret"
	cfg.Recognizer.Language = "de-DE"

	manager := transcript.NewManager(transcript.NewMemorySnapshotStore(), nil)

	stack, err := New(cfg, manager, nil)
	require.NoError(t, err)
	require.NotNil(t, stack.Meter)
	require.NotNil(t, stack.Capture)
	require.NotNil(t, stack.Recognizer)
	require.NotNil(t, stack.Session)
}

func TestNewRejectsInvalidLanguageChangeAfterStart(t *testing.T) {
	cfg := config.Default()
	manager := transcript.NewManager(transcript.NewMemorySnapshotStore(), nil)

	stack, err := New(cfg, manager, nil)
	require.NoError(t, err)
	require.NoError(t, stack.Session.SetLanguage("fr-FR"))
}
