package main

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookURL(t *testing.T) {
	id, token, err := parseWebhookURL("https://discord.com/api/webhooks/123456789012345678/abc-DEF_123")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(123456789012345678), id)
	assert.Equal(t, "abc-DEF_123", token)
}

func TestParseWebhookURLTrailingSlash(t *testing.T) {
	id, token, err := parseWebhookURL("https://discord.com/api/webhooks/123456789012345678/tok/")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(123456789012345678), id)
	assert.Equal(t, "tok", token)
}

func TestParseWebhookURLInvalid(t *testing.T) {
	cases := []string{
		"",
		"https://discord.com/api/channels/1/2",
		"https://discord.com/api/webhooks/notanid/token",
		"https://discord.com/api/webhooks/123456789012345678",
	}
	for _, url := range cases {
		_, _, err := parseWebhookURL(url)
		assert.Error(t, err, url)
	}
}
