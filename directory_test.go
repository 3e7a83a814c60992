package main

import (
	"fmt"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapResolver resolves thread ids from a fixed table and counts lookups.
type mapResolver struct {
	parents map[snowflake.ID]snowflake.ID
	calls   map[snowflake.ID]int
}

func newMapResolver(parents map[snowflake.ID]snowflake.ID) *mapResolver {
	return &mapResolver{parents: parents, calls: map[snowflake.ID]int{}}
}

func (r *mapResolver) resolve(id snowflake.ID) (snowflake.ID, error) {
	r.calls[id]++
	parent, ok := r.parents[id]
	if !ok {
		return 0, fmt.Errorf("unknown channel: %s", id)
	}
	return parent, nil
}

func TestDecodeContent(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []snowflake.ID
	}{
		{
			name: "empty document",
			body: "**Thread Directory:**",
			want: nil,
		},
		{
			name: "single group",
			body: "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#5>\r\n - <#6>",
			want: []snowflake.ID{5, 6},
		},
		{
			name: "multiple groups keep document order",
			body: "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#5>\r\n\r\n<#200>:\r\n - <#7>\r\n - <#8>",
			want: []snowflake.ID{5, 7, 8},
		},
		{
			name: "duplicate ids collapse to first occurrence",
			body: " - <#5>\r\n - <#6>\r\n - <#5>",
			want: []snowflake.ID{5, 6},
		},
		{
			name: "human text and malformed lines are ignored",
			body: "hello there\r\n- <#5>\r\n - <#notanumber>\r\n - <#6\r\n - <#6>",
			want: []snowflake.ID{6},
		},
		{
			name: "bare newlines work too",
			body: "<#100>:\n - <#5>\n - <#6>",
			want: []snowflake.ID{5, 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeContent(tt.body))
		})
	}
}

func TestEncodeContent(t *testing.T) {
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{
		5: 100, 6: 100, 7: 200,
	})
	opts := CodecOptions{KeepHeader: true}

	body, err := EncodeContent([]snowflake.ID{5, 6, 7}, resolver.resolve, opts)
	require.NoError(t, err)

	want := "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#5>\r\n - <#6>\r\n\r\n<#200>:\r\n - <#7>"
	assert.Equal(t, want, body)
}

func TestEncodeContentNoHeader(t *testing.T) {
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{
		5: 100, 6: 100, 7: 200,
	})

	body, err := EncodeContent([]snowflake.ID{5, 6, 7}, resolver.resolve, CodecOptions{})
	require.NoError(t, err)

	// No stray blank line ahead of the first group.
	want := "<#100>:\r\n - <#5>\r\n - <#6>\r\n\r\n<#200>:\r\n - <#7>"
	assert.Equal(t, want, body)
}

func TestEncodeContentResolvesEachIDOnce(t *testing.T) {
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{5: 100, 6: 100})

	_, err := EncodeContent([]snowflake.ID{5, 6}, resolver.resolve, CodecOptions{KeepHeader: true})
	require.NoError(t, err)

	assert.Equal(t, 1, resolver.calls[snowflake.ID(5)])
	assert.Equal(t, 1, resolver.calls[snowflake.ID(6)])
}

func TestEncodeContentInterleavedParents(t *testing.T) {
	// Parent groups follow first-seen order, items keep their relative order
	// within each group.
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{
		1: 100, 2: 200, 3: 100, 4: 200,
	})

	body, err := EncodeContent([]snowflake.ID{1, 2, 3, 4}, resolver.resolve, CodecOptions{KeepHeader: true})
	require.NoError(t, err)

	want := "**Thread Directory:**\r\n\r\n<#100>:\r\n - <#1>\r\n - <#3>\r\n\r\n<#200>:\r\n - <#2>\r\n - <#4>"
	assert.Equal(t, want, body)
}

func TestEncodeContentResolutionError(t *testing.T) {
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{5: 100})

	_, err := EncodeContent([]snowflake.ID{5, 6}, resolver.resolve, CodecOptions{KeepHeader: true})
	require.Error(t, err)

	var resolution *ResolutionError
	require.ErrorAs(t, err, &resolution)
	assert.Equal(t, snowflake.ID(6), resolution.ID)
}

func TestEncodeContentSizeExceeded(t *testing.T) {
	parents := map[snowflake.ID]snowflake.ID{}
	var ids []snowflake.ID
	for i := 1; i <= 200; i++ {
		id := snowflake.ID(1000000000000000000 + i)
		parents[id] = 100
		ids = append(ids, id)
	}
	resolver := newMapResolver(parents)

	_, err := EncodeContent(ids, resolver.resolve, CodecOptions{KeepHeader: true})
	require.Error(t, err)

	var size *SizeExceededError
	require.ErrorAs(t, err, &size)
	assert.Equal(t, DirectoryContentBudget, size.Budget)
	assert.Greater(t, size.Size, size.Budget)
}

func TestContentRoundTrip(t *testing.T) {
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{
		1: 100, 2: 200, 3: 100, 4: 300, 5: 200,
	})
	ids := []snowflake.ID{1, 2, 3, 4, 5}

	for _, keepHeader := range []bool{true, false} {
		body, err := EncodeContent(ids, resolver.resolve, CodecOptions{KeepHeader: keepHeader})
		require.NoError(t, err)

		// Decode yields the grouped order: 1 and 3 under 100, then 2 and 5
		// under 200, then 4 under 300.
		assert.Equal(t, []snowflake.ID{1, 3, 2, 5, 4}, DecodeContent(body))

		// A second round trip is stable.
		body2, err := EncodeContent(DecodeContent(body), resolver.resolve, CodecOptions{KeepHeader: keepHeader})
		require.NoError(t, err)
		assert.Equal(t, DecodeContent(body), DecodeContent(body2))
	}
}

func TestFieldsRoundTrip(t *testing.T) {
	resolver := newMapResolver(map[snowflake.ID]snowflake.ID{
		1: 100, 2: 200, 3: 100,
	})

	fields, err := EncodeFields([]snowflake.ID{1, 2, 3}, resolver.resolve, CodecOptions{})
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "<#100>:", fields[0].Name)
	assert.Equal(t, " - <#1>\n - <#3>", fields[0].Value)
	assert.Equal(t, "<#200>:", fields[1].Name)

	assert.Equal(t, []snowflake.ID{1, 3, 2}, DecodeFields(fields))
}

func TestEncodeFieldsSplitsOversizeGroup(t *testing.T) {
	// A group bigger than the field budget spills into continuation fields
	// without ever splitting an item line.
	parents := map[snowflake.ID]snowflake.ID{}
	var ids []snowflake.ID
	for i := 1; i <= 60; i++ {
		id := snowflake.ID(1000000000000000000 + i)
		parents[id] = 100
		ids = append(ids, id)
	}
	resolver := newMapResolver(parents)

	fields, err := EncodeFields(ids, resolver.resolve, CodecOptions{})
	require.NoError(t, err)
	require.Greater(t, len(fields), 1)

	assert.Equal(t, "<#100>:", fields[0].Name)
	for _, field := range fields[1:] {
		assert.Equal(t, "​", field.Name)
	}
	for _, field := range fields {
		assert.LessOrEqual(t, len(field.Value), DirectoryFieldBudget)
	}
	assert.Equal(t, ids, DecodeFields(fields))
}

func TestEncodeFieldsEmbedBudget(t *testing.T) {
	parents := map[snowflake.ID]snowflake.ID{}
	var ids []snowflake.ID
	for i := 1; i <= 400; i++ {
		id := snowflake.ID(1000000000000000000 + i)
		parents[id] = snowflake.ID(100 + i%4)
		ids = append(ids, id)
	}
	resolver := newMapResolver(parents)

	_, err := EncodeFields(ids, resolver.resolve, CodecOptions{})
	var size *SizeExceededError
	require.ErrorAs(t, err, &size)
	assert.Equal(t, DirectoryEmbedBudget, size.Budget)
}

func TestEncodeEmptySet(t *testing.T) {
	resolver := newMapResolver(nil)

	body, err := EncodeContent(nil, resolver.resolve, CodecOptions{KeepHeader: true})
	require.NoError(t, err)
	assert.Equal(t, "**Thread Directory:**", body)

	body, err = EncodeContent(nil, resolver.resolve, CodecOptions{})
	require.NoError(t, err)
	assert.Equal(t, "", body)

	fields, err := EncodeFields(nil, resolver.resolve, CodecOptions{})
	require.NoError(t, err)
	assert.Empty(t, fields)
}
