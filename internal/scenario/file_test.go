package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	content := `scenarios:
  - name: boot
    prompt: Hi again, Claude!
    indicators: [Prime Directive, Make it so]
  - name: retrieval
    setup:
      - I use vim keybindings.
    prompt: What do you know about me?
    indicators: [vim, keybindings, remember]
    policy: at-least:2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	scenarios, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	assert.Equal(t, "boot", scenarios[0].Name)
	assert.Equal(t, "Hi again, Claude!", scenarios[0].Prompt)
	assert.Equal(t, []string{"Prime Directive", "Make it so"}, scenarios[0].Indicators)
	assert.Equal(t, All, scenarios[0].Policy)
	assert.Empty(t, scenarios[0].Setup)

	assert.Equal(t, []string{"I use vim keybindings."}, scenarios[1].Setup)
	assert.Equal(t, "at-least:2", scenarios[1].Policy.String())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseInvalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed", "scenarios: [", "failed to parse scenario file"},
		{"empty", "scenarios: []", "no scenarios defined"},
		{"no name", "scenarios:\n  - prompt: p\n    indicators: [x]", "name is required"},
		{"no prompt", "scenarios:\n  - name: n\n    indicators: [x]", "prompt is required"},
		{"no indicators", "scenarios:\n  - name: n\n    prompt: p", "at least one indicator"},
		{"bad policy", "scenarios:\n  - name: n\n    prompt: p\n    indicators: [x]\n    policy: most", "invalid policy"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestMemoryBank(t *testing.T) {
	scenarios := MemoryBank()
	require.Len(t, scenarios, 3)

	assert.Equal(t, "Hi again, Claude!", scenarios[0].Prompt)
	assert.Equal(t, "all", scenarios[0].Policy.String())
	assert.Len(t, scenarios[0].Indicators, 5)

	assert.Equal(t, "any", scenarios[1].Policy.String())
	assert.Contains(t, scenarios[1].Indicators, "plan")

	assert.Equal(t, "at-least:2", scenarios[2].Policy.String())
	assert.Len(t, scenarios[2].Setup, 1)
}
