package main

import (
	"context"
	"errors"
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sweepTestDirectory(store *fakeStore, resolve ParentResolver) *Directory {
	return &Directory{
		Store:   store,
		Resolve: resolve,
		Style:   StyleContent,
		Options: CodecOptions{KeepHeader: true},
	}
}

func TestSweepDirectoryDropsDeletedThread(t *testing.T) {
	store := &fakeStore{doc: Document{Content: "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#5>\r\n - <#6>"}}
	gone := errors.New(`unexpected status code: 404, body: {"message": "Unknown Channel", "code": 10003}`)
	dir := sweepTestDirectory(store, func(id snowflake.ID) (snowflake.ID, error) {
		if id == 6 {
			return 0, gone
		}
		return 100, nil
	})

	sweepDirectory(context.Background(), dir, 1)

	assert.Equal(t, 1, store.writes)
	assert.Equal(t, []snowflake.ID{5}, DecodeContent(store.doc.Content))
}

func TestSweepDirectoryKeepsThreadOnTransientError(t *testing.T) {
	// A resolver failure that is not the platform's deletion rejection must
	// never cost the thread its directory entry.
	store := &fakeStore{doc: Document{Content: "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#5>\r\n - <#6>"}}
	dir := sweepTestDirectory(store, func(id snowflake.ID) (snowflake.ID, error) {
		if id == 6 {
			return 0, context.DeadlineExceeded
		}
		return 100, nil
	})

	sweepDirectory(context.Background(), dir, 1)

	assert.Zero(t, store.writes)
	assert.Equal(t, []snowflake.ID{5, 6}, DecodeContent(store.doc.Content))
}

func TestIsUnknownChannel(t *testing.T) {
	assert.True(t, isUnknownChannel(errors.New("Unknown Channel")))
	assert.True(t, isUnknownChannel(errors.New("code: 10003")))
	assert.False(t, isUnknownChannel(errors.New("rate limited")))
	assert.False(t, isUnknownChannel(context.DeadlineExceeded))
	assert.False(t, isUnknownChannel(nil))
}

func TestCollectRoleMentionsPaginates(t *testing.T) {
	roleID := snowflake.ID(42)
	pages := 0
	fetch := func(after snowflake.ID) ([]discord.Member, error) {
		pages++
		switch pages {
		case 1:
			assert.Zero(t, after)
			members := make([]discord.Member, memberPageSize)
			for i := range members {
				members[i] = discord.Member{
					User:    discord.User{ID: snowflake.ID(1000 + i)},
					RoleIDs: []snowflake.ID{roleID},
				}
			}
			return members, nil
		case 2:
			assert.Equal(t, snowflake.ID(1000+memberPageSize-1), after)
			return []discord.Member{
				{User: discord.User{ID: 5000}, RoleIDs: []snowflake.ID{roleID}},
				{User: discord.User{ID: 5001, Bot: true}, RoleIDs: []snowflake.ID{roleID}},
				{User: discord.User{ID: 5002}},
			}, nil
		}
		t.Fatalf("unexpected page %d", pages)
		return nil, nil
	}

	mentions, err := collectRoleMentions(fetch, roleID)
	require.NoError(t, err)
	require.Len(t, mentions, memberPageSize+1)
	assert.Equal(t, "<@1000>", mentions[0])
	assert.Equal(t, "<@5000>", mentions[len(mentions)-1])
}

func TestCollectRoleMentionsFetchError(t *testing.T) {
	boom := errors.New("guild unavailable")
	_, err := collectRoleMentions(func(snowflake.ID) ([]discord.Member, error) {
		return nil, boom
	}, 42)
	require.ErrorIs(t, err, boom)
}
