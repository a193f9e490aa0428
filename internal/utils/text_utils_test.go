package utils

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "hello", tp.TruncateText("hello", 0))
	assert.Equal(t, "hello", tp.TruncateText("hello", 10))
	assert.Equal(t, "hel", tp.TruncateText("hello", 3))

	// "é" is two bytes; cutting inside it backs off to the previous rune
	out := tp.TruncateText("café", 4)
	assert.Equal(t, "caf", out)
	assert.True(t, utf8.ValidString(out))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, "valid", tp.SanitizeUTF8("valid"))
	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
}

func TestProcessText(t *testing.T) {
	tp := NewTextProcessor(nil)

	out := tp.ProcessText("a\xff\xfebcdef", 3)
	assert.Equal(t, "abc", out)
}
