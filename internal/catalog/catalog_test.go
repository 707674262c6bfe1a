package catalog

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/empirewand/wandcore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c, err := New(Defaults())
	require.NoError(t, err)
	assert.Equal(t, len(Defaults()), c.Len())
}

func TestResolve(t *testing.T) {
	c, err := New(Defaults())
	require.NoError(t, err)

	d, err := c.Resolve("Comet")
	require.NoError(t, err)
	assert.Equal(t, "comet", d.ID)
	assert.Equal(t, domain.CategoryFire, d.Category)
	assert.Equal(t, int64(3000), d.BaseCooldownMs)

	_, err = c.Resolve("meteor")
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeUnknownSpell))
}

func TestListByCategoryAndType(t *testing.T) {
	c, err := New(Defaults())
	require.NoError(t, err)

	fire := c.ListByCategory(domain.CategoryFire)
	ids := make([]string, 0, len(fire))
	for _, d := range fire {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"comet", "comet-shower", "fireball", "flame-wave"}, ids)

	for _, d := range c.ListByType(domain.TypeAura) {
		assert.Equal(t, domain.TypeAura, d.Type)
	}
	assert.Empty(t, c.ListByCategory("plasma"))
}

func TestListReturnsCopy(t *testing.T) {
	c, err := New(Defaults())
	require.NoError(t, err)

	list := c.All()
	list[0].ID = "mutated"

	assert.NotEqual(t, "mutated", c.All()[0].ID)
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name string
		defs []domain.SpellDefinition
	}{
		{"duplicate id", []domain.SpellDefinition{
			spell("leap", domain.CategoryMovement, domain.TypeInstant, 1, ""),
			spell("leap", domain.CategoryMovement, domain.TypeInstant, 1, ""),
		}},
		{"bad id", []domain.SpellDefinition{spell("Leap!", domain.CategoryMovement, domain.TypeInstant, 1, "")}},
		{"bad category", []domain.SpellDefinition{spell("leap", "plasma", domain.TypeInstant, 1, "")}},
		{"bad type", []domain.SpellDefinition{spell("leap", domain.CategoryMovement, "beam", 1, "")}},
		{"negative cooldown", []domain.SpellDefinition{spell("leap", domain.CategoryMovement, domain.TypeInstant, -1, "")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.defs)
			assert.Error(t, err)
		})
	}
}

func TestReload_FailureKeepsOldSet(t *testing.T) {
	c, err := New(Defaults())
	require.NoError(t, err)

	err = c.Reload([]domain.SpellDefinition{spell("x", "plasma", domain.TypeInstant, 1, "")})
	require.Error(t, err)

	_, err = c.Resolve("comet")
	assert.NoError(t, err)
}

func TestReload_ConcurrentReaders(t *testing.T) {
	c, err := New(Defaults())
	require.NoError(t, err)

	small := []domain.SpellDefinition{spell("leap", domain.CategoryMovement, domain.TypeInstant, 1, "")}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				n := c.Len()
				assert.True(t, n == 1 || n == len(Defaults()))
			}
		}()
	}
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			require.NoError(t, c.Reload(small))
		} else {
			require.NoError(t, c.Reload(Defaults()))
		}
	}
	wg.Wait()
}

const spellsYAML = `
config-version: "1.0"
spells:
  Leap:
    category: movement
    type: instant
    cooldown-ms: 1500
    display-name: Leap
  comet:
    category: fire
    type: projectile
    cooldown-ms: 3000
    description: A falling star
    extra:
      color: orange
`

func TestParse(t *testing.T) {
	defs, err := Parse([]byte(spellsYAML))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "comet", defs[0].ID)
	assert.Equal(t, "orange", defs[0].Metadata.Extra["color"])
	assert.Equal(t, "leap", defs[1].ID)
	assert.Equal(t, int64(1500), defs[1].BaseCooldownMs)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("spells: {}"))
	assert.Error(t, err)

	_, err = Parse([]byte("spells:\n  leap:\n    category: nowhere\n    type: instant\n"))
	assert.Error(t, err)

	_, err = Parse([]byte(":::"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		defs, err := LoadFile("")
		require.NoError(t, err)
		assert.Len(t, defs, len(Defaults()))
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "spells.yml")
		require.NoError(t, os.WriteFile(path, []byte(spellsYAML), 0o600))
		defs, err := LoadFile(path)
		require.NoError(t, err)
		assert.Len(t, defs, 2)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yml"))
		assert.Error(t, err)
	})
}
