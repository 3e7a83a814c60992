package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidTagName(t *testing.T) {
	valid := []string{"rules", "faq-2", "Welcome", "a"}
	for _, name := range valid {
		assert.True(t, isValidTagName(name), name)
	}

	invalid := []string{"", "has space", "semi;colon", "под", strings.Repeat("x", tagNameLimit+1)}
	for _, name := range invalid {
		assert.False(t, isValidTagName(name), name)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exact", truncate("exact", 5))
	assert.Equal(t, "long…", truncate("longer", 5))
}

func TestTagListContent(t *testing.T) {
	assert.Contains(t, tagListContent(nil), MsgTagListEmpty)

	tags := []*Tag{
		{Name: "faq", Content: "Read the pinned message."},
		{Name: "rules", Content: "Be kind."},
	}
	out := tagListContent(tags)
	assert.Contains(t, out, "`!faq`")
	assert.Contains(t, out, "`!rules`")
	assert.Contains(t, out, "Be kind.")
}
