package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	c := Builtin()
	require.NotZero(t, c.Len())

	def, ok := c.Lookup("hunger_reduction")
	require.True(t, ok)
	assert.Equal(t, SemanticReduction, def.Semantic)
	assert.Equal(t, StackMultiplicative, def.Stacking)
	assert.Equal(t, 0.0, def.Default)

	def, ok = c.Lookup("carry_capacity")
	require.True(t, ok)
	assert.Equal(t, 1.0, def.Default, "multipliers default to identity")

	_, ok = c.Lookup("no_such_effect")
	assert.False(t, ok)
	assert.Equal(t, 0.0, c.Default("no_such_effect"))
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New("v", []Definition{
		{Name: "x", Stacking: StackAdditive},
		{Name: "x", Stacking: StackMaximum},
	})
	assert.Error(t, err)
}

func writeOverlay(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverlay_AddsEffects(t *testing.T) {
	path := writeOverlay(t, `
version: winter-update
effects:
  - name: frostbite_reduction
    semantic: reduction
    stacking: multiplicative
  - name: sled_speed
    semantic: multiplier
    stacking: multiplicative
    default: 1
`)

	c, err := LoadOverlay(path)
	require.NoError(t, err)

	def, ok := c.Lookup("frostbite_reduction")
	require.True(t, ok)
	assert.Equal(t, SemanticReduction, def.Semantic)

	// Builtins survive the merge.
	_, ok = c.Lookup("hunger_reduction")
	assert.True(t, ok)
	assert.Contains(t, c.Version, "winter-update")
}

func TestLoadOverlay_CannotShadowBuiltin(t *testing.T) {
	path := writeOverlay(t, `
effects:
  - name: hunger_reduction
    semantic: reduction
    stacking: additive
`)

	_, err := LoadOverlay(path)
	assert.ErrorContains(t, err, "redefines builtin")
}

func TestLoadOverlay_RejectsUnknownEnums(t *testing.T) {
	for name, body := range map[string]string{
		"semantic":     "effects:\n  - {name: x, semantic: wobbly, stacking: additive}\n",
		"stacking":     "effects:\n  - {name: x, semantic: regen, stacking: sideways}\n",
		"missing name": "effects:\n  - {semantic: regen, stacking: additive}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadOverlay(writeOverlay(t, body))
			assert.Error(t, err)
		})
	}
}
