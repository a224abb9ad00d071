package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintBanner_PlainWriter(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.1.0")

	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "non-terminal output must not carry escape codes")
	assert.Contains(t, out, "v0.1.0")
	assert.Equal(t, len(bannerLines)+3, strings.Count(out, "\n"))
}

func TestStyles_PlainWriter(t *testing.T) {
	s := NewStyles(&bytes.Buffer{})
	assert.Equal(t, "hello", s.Speech("hello"))
	assert.Equal(t, "[call ended]", s.System("[call ended]"))
	assert.Equal(t, "boom", s.Error("boom"))
	assert.Equal(t, "> ", s.Prompt())
}
