package application_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-relay/internal/application"
)

func TestWorkspace_CloseRemovesArtifacts(t *testing.T) {
	root := t.TempDir()

	ws, err := application.OpenWorkspace(root, "AgADBAAD-x")
	require.NoError(t, err)

	written := ws.Path("AgADBAAD-x.ogg")
	require.NoError(t, os.WriteFile(written, []byte("clip"), 0o644))
	ws.Path("never-written.wav")

	assert.Equal(t, []string{written}, ws.Artifacts())

	require.NoError(t, ws.Close())
	require.NoError(t, ws.Close())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWorkspace_SeparateInvocationsDoNotCollide(t *testing.T) {
	root := t.TempDir()

	a, err := application.OpenWorkspace(root, "42")
	require.NoError(t, err)
	b, err := application.OpenWorkspace(root, "42")
	require.NoError(t, err)

	pathA := a.Path("42_reply.ogg")
	pathB := b.Path("42_reply.ogg")
	assert.NotEqual(t, pathA, pathB)

	require.NoError(t, os.WriteFile(pathA, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte("b"), 0o644))
	require.NoError(t, a.Close())

	data, err := os.ReadFile(pathB)
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
	require.NoError(t, b.Close())
}

func TestWorkspace_PathStaysInside(t *testing.T) {
	ws, err := application.OpenWorkspace(t.TempDir(), "../../etc")
	require.NoError(t, err)
	defer ws.Close()

	for _, name := range []string{"../../passwd", "..", "a/b/c.ogg", "chat:1?x"} {
		path := ws.Path(name)
		assert.Equal(t, ws.Dir(), filepath.Dir(path), name)
	}
}

func TestBuildPrompt(t *testing.T) {
	got := application.BuildPrompt(application.DefaultPromptTemplate, `say "hi"`)
	assert.Equal(t, `You are a friendly and helpful assistant. Respond in a natural, human-like tone. The user said: "say "hi""`, got)
}
