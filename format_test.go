package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderPlainTable(t *testing.T) {
	out := renderPlainTable(
		[]string{"Name", "Count"},
		[][]string{
			{"alpha", "1"},
			{"beta-longer", "20"},
		},
	)

	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "Name         Count", lines[0])
	assert.Equal(t, "alpha        1", lines[1])
	assert.Equal(t, "beta-longer  20", lines[2])
}

func TestRenderPlainTableShortRows(t *testing.T) {
	out := renderPlainTable(
		[]string{"A", "B"},
		[][]string{{"only"}},
	)

	assert.Contains(t, out, "only")
}

func TestConfirm(t *testing.T) {
	assert.True(t, confirm(strings.NewReader("y\n")))
	assert.True(t, confirm(strings.NewReader("YES\n")))
	assert.False(t, confirm(strings.NewReader("n\n")))
	assert.False(t, confirm(strings.NewReader("\n")))
	assert.False(t, confirm(strings.NewReader("")))
}
