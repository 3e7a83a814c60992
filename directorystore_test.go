package main

import (
	"context"
	"errors"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps the document in memory and counts operations.
type fakeStore struct {
	doc      Document
	fetches  int
	writes   int
	fetchErr error
	writeErr error
}

func (s *fakeStore) Fetch(ctx context.Context) (*Document, error) {
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	doc := s.doc
	return &doc, nil
}

func (s *fakeStore) Write(ctx context.Context, doc *Document) error {
	s.writes++
	if s.writeErr != nil {
		return s.writeErr
	}
	s.doc = *doc
	return nil
}

func newTestDirectory(store *fakeStore, resolver *mapResolver) *Directory {
	return &Directory{
		Store:   store,
		Resolve: resolver.resolve,
		Style:   StyleContent,
		Options: CodecOptions{KeepHeader: true},
	}
}

func TestDirectoryAdd(t *testing.T) {
	store := &fakeStore{doc: Document{Content: "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#5>"}}
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{5: 100, 6: 100})
	dir := newTestDirectory(store, resolver)

	changed, err := dir.Add(context.Background(), 6)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, store.writes)
	assert.Equal(t, "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#5>\r\n - <#6>", store.doc.Content)
}

func TestDirectoryAddNewParentAppendsGroup(t *testing.T) {
	store := &fakeStore{doc: Document{Content: "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#5>"}}
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{5: 100, 7: 200})
	dir := newTestDirectory(store, resolver)

	changed, err := dir.Add(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#5>\r\n\r\n<#200>:\r\n - <#7>", store.doc.Content)
}

func TestDirectoryAddIdempotent(t *testing.T) {
	store := &fakeStore{doc: Document{Content: "**Thread Directory:**"}}
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{6: 100})
	dir := newTestDirectory(store, resolver)

	changed, err := dir.Add(context.Background(), 6)
	require.NoError(t, err)
	assert.True(t, changed)
	first := store.doc.Content

	changed, err = dir.Add(context.Background(), 6)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, store.writes, "second add must not write")
	assert.Equal(t, first, store.doc.Content)
}

func TestDirectoryAddUnresolvableAborts(t *testing.T) {
	store := &fakeStore{doc: Document{Content: "**Thread Directory:**"}}
	resolver := newMapResolver(nil)
	dir := newTestDirectory(store, resolver)

	_, err := dir.Add(context.Background(), 6)
	var resolution *ResolutionError
	require.ErrorAs(t, err, &resolution)
	assert.Equal(t, snowflake.ID(6), resolution.ID)
	assert.Zero(t, store.writes)
}

func TestDirectoryRemove(t *testing.T) {
	store := &fakeStore{doc: Document{Content: "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#5>\r\n - <#6>"}}
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{5: 100, 6: 100})
	dir := newTestDirectory(store, resolver)

	changed, err := dir.Remove(context.Background(), 6)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#5>", store.doc.Content)
}

func TestDirectoryRemoveAbsentIsNoOp(t *testing.T) {
	store := &fakeStore{doc: Document{Content: "**Thread Directory:**"}}
	resolver := newMapResolver(nil)
	dir := newTestDirectory(store, resolver)

	changed, err := dir.Remove(context.Background(), 6)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, store.writes)
}

func TestDirectoryRemoveDropsEmptyGroup(t *testing.T) {
	store := &fakeStore{doc: Document{Content: "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#5>\r\n\r\n<#200>:\r\n - <#7>"}}
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{5: 100, 7: 200})
	dir := newTestDirectory(store, resolver)

	changed, err := dir.Remove(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#5>", store.doc.Content)
}

func TestDirectoryAddThenRemoveRestoresEmptyDocument(t *testing.T) {
	store := &fakeStore{doc: Document{Content: "**Thread Directory:**"}}
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{6: 100})
	dir := newTestDirectory(store, resolver)

	_, err := dir.Add(context.Background(), 6)
	require.NoError(t, err)

	changed, err := dir.Remove(context.Background(), 6)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "**Thread Directory:**", store.doc.Content)
}

func TestDirectoryRemoveToleratesUnresolvableSiblings(t *testing.T) {
	// Thread 5 was deleted behind our back; removing thread 6 must still
	// succeed, dropping 5 along the way rather than failing the encode.
	store := &fakeStore{doc: Document{Content: "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#5>\r\n - <#6>\r\n - <#7>"}}
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{7: 100})
	dir := newTestDirectory(store, resolver)

	changed, err := dir.Remove(context.Background(), 6)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#7>", store.doc.Content)
}

func TestDirectoryWriteFailureIsIndeterminate(t *testing.T) {
	store := &fakeStore{
		doc:      Document{Content: "**Thread Directory:**"},
		writeErr: errors.New("edit failed"),
	}
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{6: 100})
	dir := newTestDirectory(store, resolver)

	_, err := dir.Add(context.Background(), 6)
	var indeterminate *WriteIndeterminateError
	require.ErrorAs(t, err, &indeterminate)

	// Retrying the whole cycle after the fault clears is safe.
	store.writeErr = nil
	changed, err := dir.Add(context.Background(), 6)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestDirectoryFetchErrorPropagates(t *testing.T) {
	store := &fakeStore{fetchErr: ErrDocumentNotFound}
	resolver := newMapResolver(nil)
	dir := newTestDirectory(store, resolver)

	_, err := dir.Add(context.Background(), 6)
	require.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = dir.Remove(context.Background(), 6)
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDirectoryEmbedStyle(t *testing.T) {
	store := &fakeStore{doc: Document{}}
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{5: 100, 7: 200})
	dir := &Directory{
		Store:   store,
		Resolve: resolver.resolve,
		Style:   StyleEmbed,
	}

	for _, id := range []snowflake.ID{5, 7} {
		_, err := dir.Add(context.Background(), id)
		require.NoError(t, err)
	}
	require.Len(t, store.doc.Fields, 2)

	items, err := dir.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{5, 7}, items)

	changed, err := dir.Remove(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []snowflake.ID{7}, DecodeFields(store.doc.Fields))
}
