package termview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-fishid/pkg/segment"
)

func TestNew_NilTheme(t *testing.T) {
	r := New(nil)

	require.NotNil(t, r)
	assert.Equal(t, DefaultTheme(), r.Theme())
}

func TestRender(t *testing.T) {
	doc := segment.Segment("Fish Information\nSpecies: Clownfish\nHabitat\nCoral reefs\nInteresting Facts\nCan change color\nLives in anemones")

	out := New(nil).Render(doc)

	for _, want := range []string{"Fish Information", "Species:", "Clownfish", "Habitat", "Coral reefs", "Interesting Facts", "Can change color", "Lives in anemones"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "Coral reefs"), strings.Index(out, "Can change color"), "facts come last")
}

func TestRender_Empty(t *testing.T) {
	r := New(nil)

	assert.Contains(t, r.Render(nil), "No information returned.")
	assert.Contains(t, r.Render(segment.Segment("")), "No information returned.")
}

func TestRenderError(t *testing.T) {
	out := New(nil).RenderError("  Camera access was denied.  ")
	assert.Contains(t, out, "✗ Camera access was denied.")
}
