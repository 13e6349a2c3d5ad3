package doctree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullDocument(t *testing.T) {
	raw := []byte(`{
		"object_type": "здание",
		"style": "модерн",
		"components": [
			{"name": "base", "type": "cube", "position": [0, 0.5, 0], "scale": [10, 1, 10], "material": "бетон"},
			{"name": "wall", "type": "cube", "position": [-4.5, 3, 0], "scale": [1, 5, 10], "rotation": [0, 90, 0]}
		],
		"modifiers": [
			{"component": "wall", "type": "array", "parameters": {"count": 4}}
		]
	}`)

	doc, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "здание", doc.ObjectType)
	assert.Equal(t, "модерн", doc.Style)
	require.Len(t, doc.Components, 2)

	base := doc.Components[0]
	assert.Equal(t, "cube", base.Type)
	assert.Equal(t, [3]float64{0, 0.5, 0}, base.Position)
	assert.Equal(t, [3]float64{10, 1, 10}, base.Scale)
	assert.Equal(t, [3]float64{0, 0, 0}, base.Rotation, "missing rotation takes the default")
	assert.Equal(t, "бетон", base.Material)

	require.Len(t, doc.Modifiers, 1)
	assert.Equal(t, "wall", doc.Modifiers[0].Component)
	assert.Equal(t, map[string]any{"count": float64(4)}, doc.Modifiers[0].Parameters)
}

func TestParseDefaults(t *testing.T) {
	doc, err := Parse([]byte(`{"components": [{"name": "c", "type": "sphere"}]}`))
	require.NoError(t, err)
	require.Len(t, doc.Components, 1)

	cmp := doc.Components[0]
	assert.Equal(t, [3]float64{0, 0, 0}, cmp.Position)
	assert.Equal(t, [3]float64{1, 1, 1}, cmp.Scale)
	assert.Equal(t, [3]float64{0, 0, 0}, cmp.Rotation)
}

func TestParseShapeErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not an object", `[1, 2, 3]`},
		{"components not a list", `{"components": "nope"}`},
		{"component not a mapping", `{"components": [42]}`},
		{"component missing type", `{"components": [{"name": "x"}]}`},
		{"bad triple", `{"components": [{"type": "cube", "position": [1, 2]}]}`},
		{"non-numeric triple", `{"components": [{"type": "cube", "scale": ["a", 1, 1]}]}`},
		{"modifier missing type", `{"components": [{"name": "c", "type": "cube"}], "modifiers": [{"component": "c"}]}`},
		{"modifier unknown component", `{"components": [{"name": "c", "type": "cube"}], "modifiers": [{"component": "d", "type": "array"}]}`},
		{"modifier parameters not a mapping", `{"components": [{"name": "c", "type": "cube"}], "modifiers": [{"component": "c", "type": "array", "parameters": []}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw))
			assert.Error(t, err)
		})
	}
}

func TestBuildRoundTrip(t *testing.T) {
	original := []byte(`{
		"object_type": "мост",
		"components": [
			{"name": "deck", "type": "cube", "position": [0, 5, 0], "scale": [20, 1, 4], "rotation": [0, 0, 0]},
			{"name": "pillar", "type": "cylinder", "position": [0, 2.5, 0], "scale": [1, 5, 1], "rotation": [0, 0, 0]}
		],
		"modifiers": [
			{"component": "pillar", "type": "mirror", "parameters": {"axis": "x"}}
		]
	}`)

	doc, err := Parse(original)
	require.NoError(t, err)

	rebuilt, err := doc.Build()
	require.NoError(t, err)

	again, err := Parse(rebuilt)
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}
