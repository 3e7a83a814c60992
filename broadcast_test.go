package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMessenger records sends and the edit history of each sent message.
type fakeMessenger struct {
	sends   []string
	edits   []string
	deletes int
	sendErr error
	editErr error
}

func (m *fakeMessenger) Send(ctx context.Context, content string) (MessageHandle, error) {
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sends = append(m.sends, content)
	return &fakeMessage{messenger: m}, nil
}

type fakeMessage struct {
	messenger *fakeMessenger
}

func (m *fakeMessage) Edit(ctx context.Context, content string) error {
	if m.messenger.editErr != nil {
		return m.messenger.editErr
	}
	m.messenger.edits = append(m.messenger.edits, content)
	return nil
}

func (m *fakeMessage) Delete(ctx context.Context) error {
	m.messenger.deletes++
	return nil
}

func mentionList(n int) []string {
	mentions := make([]string, n)
	for i := range mentions {
		mentions[i] = fmt.Sprintf("<@%d>", 1000+i)
	}
	return mentions
}

func TestBroadcastEmpty(t *testing.T) {
	ch := &fakeMessenger{}
	b := &Broadcaster{}

	err := b.Broadcast(context.Background(), ch, nil)
	require.NoError(t, err)

	require.Len(t, ch.sends, 1)
	assert.Equal(t, MsgBroadcastNoRecipients, ch.sends[0])
	assert.Empty(t, ch.edits)
	assert.Zero(t, ch.deletes)
}

func TestBroadcastChunksByItemCount(t *testing.T) {
	// 25 mentions with a 10 item cap: one placeholder send plus exactly
	// ceil(25/10) = 3 edits of 10, 10 and 5 mentions.
	ch := &fakeMessenger{}
	b := &Broadcaster{MaxItems: 10}
	mentions := mentionList(25)

	err := b.Broadcast(context.Background(), ch, mentions)
	require.NoError(t, err)

	require.Len(t, ch.sends, 1)
	assert.Equal(t, MsgBroadcastPlaceholder, ch.sends[0])
	require.Len(t, ch.edits, 3)

	var emitted []string
	for i, chunk := range ch.edits {
		items := strings.Fields(chunk)
		if i < 2 {
			assert.Len(t, items, 10)
		} else {
			assert.Len(t, items, 5)
		}
		emitted = append(emitted, items...)
	}
	assert.Equal(t, mentions, emitted, "mentions must survive in order with no drops or duplicates")
}

func TestBroadcastChunksByCharacterBudget(t *testing.T) {
	ch := &fakeMessenger{}
	b := &Broadcaster{MaxChars: 40, MaxItems: 100}
	mentions := mentionList(12) // 7 characters each, 8 with separator

	err := b.Broadcast(context.Background(), ch, mentions)
	require.NoError(t, err)

	var emitted []string
	for _, chunk := range ch.edits {
		assert.LessOrEqual(t, len(chunk), 40)
		emitted = append(emitted, strings.Fields(chunk)...)
	}
	assert.Equal(t, mentions, emitted)
}

func TestBroadcastSingleChunk(t *testing.T) {
	ch := &fakeMessenger{}
	b := &Broadcaster{}

	err := b.Broadcast(context.Background(), ch, mentionList(3))
	require.NoError(t, err)

	require.Len(t, ch.sends, 1)
	require.Len(t, ch.edits, 1)
}

func TestBroadcastBudgetsNeverExceeded(t *testing.T) {
	for _, tt := range []struct {
		n        int
		maxChars int
		maxItems int
	}{
		{1, 2000, 10},
		{10, 2000, 10},
		{11, 2000, 10},
		{97, 150, 7},
		{64, 33, 3},
	} {
		t.Run(fmt.Sprintf("n=%d chars=%d items=%d", tt.n, tt.maxChars, tt.maxItems), func(t *testing.T) {
			ch := &fakeMessenger{}
			b := &Broadcaster{MaxChars: tt.maxChars, MaxItems: tt.maxItems}

			err := b.Broadcast(context.Background(), ch, mentionList(tt.n))
			require.NoError(t, err)

			var emitted []string
			for _, chunk := range ch.edits {
				items := strings.Fields(chunk)
				assert.LessOrEqual(t, len(chunk), tt.maxChars)
				assert.LessOrEqual(t, len(items), tt.maxItems)
				emitted = append(emitted, items...)
			}
			assert.Equal(t, mentionList(tt.n), emitted)
		})
	}
}

func TestBroadcastMinimalChunkCount(t *testing.T) {
	// When the character budget is not binding, the chunk count is exactly
	// ceil(n / maxItems).
	for _, n := range []int{1, 9, 10, 11, 20, 21, 100} {
		ch := &fakeMessenger{}
		b := &Broadcaster{MaxItems: 10}

		err := b.Broadcast(context.Background(), ch, mentionList(n))
		require.NoError(t, err)

		want := (n + 9) / 10
		assert.Len(t, ch.edits, want, "n=%d", n)
	}
}

func TestBroadcastSummaryReplacesFinalChunk(t *testing.T) {
	ch := &fakeMessenger{}
	b := &Broadcaster{MaxItems: 10, Summary: "All members added!"}

	err := b.Broadcast(context.Background(), ch, mentionList(15))
	require.NoError(t, err)

	require.Len(t, ch.edits, 3)
	assert.Equal(t, "All members added!", ch.edits[len(ch.edits)-1])
	assert.Zero(t, ch.deletes)
}

func TestBroadcastNoSummaryDeletesMessage(t *testing.T) {
	ch := &fakeMessenger{}
	b := &Broadcaster{MaxItems: 10}

	err := b.Broadcast(context.Background(), ch, mentionList(15))
	require.NoError(t, err)

	require.Len(t, ch.edits, 2)
	assert.Equal(t, 1, ch.deletes)
}

func TestBroadcastOversizeMention(t *testing.T) {
	ch := &fakeMessenger{}
	b := &Broadcaster{MaxChars: 10}

	err := b.Broadcast(context.Background(), ch, []string{strings.Repeat("x", 20)})
	require.Error(t, err)
}

func TestBroadcastSendFailure(t *testing.T) {
	ch := &fakeMessenger{sendErr: errors.New("channel gone")}
	b := &Broadcaster{}

	err := b.Broadcast(context.Background(), ch, mentionList(2))
	require.Error(t, err)
}

func TestBroadcastEditFailure(t *testing.T) {
	ch := &fakeMessenger{editErr: errors.New("message gone")}
	b := &Broadcaster{}

	err := b.Broadcast(context.Background(), ch, mentionList(2))
	require.Error(t, err)
}
