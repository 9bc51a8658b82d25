package classification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleConfig() Config {
	return Config{
		Levels: []Level{
			{ID: "L1", Title: "Low"},
			{ID: "L2", Title: "High"},
		},
		Classification: map[string]Classification{
			"1":    {ID: "1", Title: "Personal"},
			"1-1":  {ID: "1-1", Title: "Basic", LevelID: "L1"},
			"1-2":  {ID: "1-2", Title: "Contact", LevelID: "L2"},
			"2":    {ID: "2", Title: "Finance"},
			"2-1":  {ID: "2-1", Title: "Card", LevelID: "L9"},
			"C-PI": {Title: "Keyed only", LevelID: "L2"},
		},
	}
}

func TestCatalog_Selectable(t *testing.T) {
	cat := NewCatalog(sampleConfig())

	selectable := cat.Selectable()
	ids := make([]string, 0, len(selectable))
	for _, c := range selectable {
		assert.NotEmpty(t, c.LevelID, "selectable must never return a group header")
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"1-1", "1-2", "2-1", "C-PI"}, ids)
	assert.Equal(t, 6, cat.Len())
	assert.Len(t, cat.All(), 6)
}

func TestCatalog_Empty(t *testing.T) {
	cat := NewCatalog(Config{})
	assert.Empty(t, cat.Selectable())
	assert.Empty(t, cat.Levels())
}

func TestCatalog_Lookup(t *testing.T) {
	cat := NewCatalog(sampleConfig())

	c, ok := cat.Lookup("C-PI")
	require.True(t, ok)
	assert.Equal(t, "C-PI", c.ID, "id falls back to the map key")

	_, ok = cat.Lookup("missing")
	assert.False(t, ok)
}

func TestCatalog_Display(t *testing.T) {
	cat := NewCatalog(sampleConfig())

	tests := []struct {
		name string
		in   Classification
		want string
	}{
		{"resolved level", Classification{ID: "1-2", Title: "Contact", LevelID: "L2"}, "1-2 Contact ==== [High]"},
		{"unknown level falls back to id", Classification{ID: "2-1", Title: "Card", LevelID: "L9"}, "2-1 Card ==== [L9]"},
		{"group header", Classification{ID: "1", Title: "Personal"}, "Personal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cat.Display(tt.in))
		})
	}
}

func TestCatalog_LevelsAreCopied(t *testing.T) {
	cat := NewCatalog(sampleConfig())
	levels := cat.Levels()
	levels[0].Title = "mutated"

	l, ok := cat.Level("L1")
	require.True(t, ok)
	assert.Equal(t, "Low", l.Title)
}
