package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) context.Context {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, InitDatabase(ctx, path))
	t.Cleanup(func() {
		CloseDatabase()
		DB = nil
	})
	return ctx
}

func TestGuildSettingsDefaults(t *testing.T) {
	ctx := setupTestDB(t)

	settings, err := GetGuildSettings(ctx, snowflake.ID(12345))
	require.NoError(t, err)

	assert.Equal(t, snowflake.ID(12345), settings.GuildID)
	assert.Equal(t, StyleContent, settings.DirectoryStyle)
	assert.True(t, settings.KeepHeader)
	assert.False(t, settings.HasDirectory())
	assert.Empty(t, settings.BlockedParents)
}

func TestGuildSettingsRoundTrip(t *testing.T) {
	ctx := setupTestDB(t)

	in := &GuildSettings{
		GuildID:            snowflake.ID(111111111111111111),
		PingRoleID:         snowflake.ID(222222222222222222),
		DirectoryChannelID: snowflake.ID(333333333333333333),
		DirectoryMessageID: snowflake.ID(444444444444444444),
		DirectoryStyle:     StyleEmbed,
		KeepHeader:         false,
		BlockedParents:     []snowflake.ID{5, 6},
	}
	require.NoError(t, SetGuildSettings(ctx, in))

	out, err := GetGuildSettings(ctx, in.GuildID)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.True(t, out.HasDirectory())
	assert.True(t, out.IsParentBlocked(snowflake.ID(5)))
	assert.False(t, out.IsParentBlocked(snowflake.ID(7)))
}

func TestGuildSettingsUpsert(t *testing.T) {
	ctx := setupTestDB(t)

	settings := &GuildSettings{GuildID: snowflake.ID(1), PingRoleID: snowflake.ID(2), KeepHeader: true}
	require.NoError(t, SetGuildSettings(ctx, settings))

	settings.PingRoleID = snowflake.ID(3)
	settings.DirectoryStyle = StyleEmbed
	require.NoError(t, SetGuildSettings(ctx, settings))

	out, err := GetGuildSettings(ctx, snowflake.ID(1))
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(3), out.PingRoleID)
	assert.Equal(t, StyleEmbed, out.DirectoryStyle)
}

func TestListConfiguredGuilds(t *testing.T) {
	ctx := setupTestDB(t)

	// Only the guild with a full directory location should be listed.
	require.NoError(t, SetGuildSettings(ctx, &GuildSettings{
		GuildID:            snowflake.ID(10),
		DirectoryChannelID: snowflake.ID(11),
		DirectoryMessageID: snowflake.ID(12),
		KeepHeader:         true,
	}))
	require.NoError(t, SetGuildSettings(ctx, &GuildSettings{
		GuildID:    snowflake.ID(20),
		PingRoleID: snowflake.ID(21),
		KeepHeader: true,
	}))

	configured, err := ListConfiguredGuilds(ctx)
	require.NoError(t, err)
	require.Len(t, configured, 1)
	assert.Equal(t, snowflake.ID(10), configured[0].GuildID)
}

func TestTagSeedAndCRUD(t *testing.T) {
	ctx := setupTestDB(t)

	// Defaults are seeded on init.
	rules, err := GetTag(ctx, "rules")
	require.NoError(t, err)
	require.NotNil(t, rules)
	assert.NotEmpty(t, rules.Content)

	require.NoError(t, SetTag(ctx, "Faq", "Read the pinned message."))

	// Names are case-insensitive.
	faq, err := GetTag(ctx, "FAQ")
	require.NoError(t, err)
	require.NotNil(t, faq)
	assert.Equal(t, "faq", faq.Name)
	assert.Equal(t, "Read the pinned message.", faq.Content)

	tags, err := ListTags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, len(defaultTags)+1)

	removed, err := RemoveTag(ctx, "faq")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = RemoveTag(ctx, "faq")
	require.NoError(t, err)
	assert.False(t, removed)

	gone, err := GetTag(ctx, "faq")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestTagSeedDoesNotOverwrite(t *testing.T) {
	ctx := setupTestDB(t)

	require.NoError(t, SetTag(ctx, "rules", "Custom rules."))
	require.NoError(t, SeedDefaultTags(ctx))

	tag, err := GetTag(ctx, "rules")
	require.NoError(t, err)
	require.NotNil(t, tag)
	assert.Equal(t, "Custom rules.", tag.Content)
}

func TestBotConfig(t *testing.T) {
	ctx := setupTestDB(t)

	val, err := GetBotConfig(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "", val)

	require.NoError(t, SetBotConfig(ctx, "last_cmd_hash", "abc"))
	require.NoError(t, SetBotConfig(ctx, "last_cmd_hash", "def"))

	val, err = GetBotConfig(ctx, "last_cmd_hash")
	require.NoError(t, err)
	assert.Equal(t, "def", val)
}
