package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer(t *testing.T) {
	render := NewRenderer()
	out, err := render("**Welcome** to the course")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.GreaterOrEqual(t, strings.Count(buf.String(), "\n"), 6)
	assert.Contains(t, buf.String(), "|_|")
}
