package main

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"
)

// ============================================================================
// Chunked Mention Broadcaster
// ============================================================================
//
// Mentioning a member inside a thread adds them to it, so pinging a whole
// role means emitting every mention exactly once. Discord caps a message at
// 2000 characters and silently ignores mention number eleven onwards, so the
// mentions are flushed in chunks by editing a single placeholder message in
// place instead of flooding the thread with one message per chunk.

const (
	BroadcastMaxChars = 2000
	BroadcastMaxItems = 10

	MsgBroadcastNoRecipients = "No members to add were found."
	MsgBroadcastPlaceholder  = "Adding members to the thread..."
)

// MessageHandle is one sent message that can be edited in place.
type MessageHandle interface {
	Edit(ctx context.Context, content string) error
	Delete(ctx context.Context) error
}

// Messenger sends messages into one destination channel or thread.
type Messenger interface {
	Send(ctx context.Context, content string) (MessageHandle, error)
}

// Broadcaster delivers an ordered list of mention strings within fixed
// per-message character and mention-count budgets.
type Broadcaster struct {
	// MaxChars and MaxItems bound each chunk; zero means the Discord limits.
	MaxChars int
	MaxItems int
	// Placeholder is the first message sent before any chunk is flushed.
	Placeholder string
	// Summary, when set, replaces the final chunk once everything is
	// delivered. When empty the message is deleted instead.
	Summary string
	// Empty is sent instead of the placeholder when there is nothing to
	// deliver.
	Empty string
	// Limiter, when set, paces the edits.
	Limiter *rate.Limiter
}

func (b *Broadcaster) maxChars() int {
	if b.MaxChars <= 0 {
		return BroadcastMaxChars
	}
	return b.MaxChars
}

func (b *Broadcaster) maxItems() int {
	if b.MaxItems <= 0 {
		return BroadcastMaxItems
	}
	return b.MaxItems
}

func (b *Broadcaster) wait(ctx context.Context) error {
	if b.Limiter == nil {
		return nil
	}
	return b.Limiter.Wait(ctx)
}

// Broadcast sends every mention, in order, into ch. One message is sent and
// then edited once per chunk; mention strings are never split across chunks.
// Once every chunk is flushed the message becomes the Summary, or is deleted
// when no Summary is set. An empty mention list produces a single
// informational message that is left standing.
func (b *Broadcaster) Broadcast(ctx context.Context, ch Messenger, mentions []string) error {
	if len(mentions) == 0 {
		empty := b.Empty
		if empty == "" {
			empty = MsgBroadcastNoRecipients
		}
		_, err := ch.Send(ctx, empty)
		return err
	}

	placeholder := b.Placeholder
	if placeholder == "" {
		placeholder = MsgBroadcastPlaceholder
	}
	msg, err := ch.Send(ctx, placeholder)
	if err != nil {
		return err
	}

	flush := func(buffer string) error {
		if err := b.wait(ctx); err != nil {
			return err
		}
		return msg.Edit(ctx, buffer)
	}

	var buffer string
	count := 0
	for _, mention := range mentions {
		if len(mention)+1 > b.maxChars() {
			return fmt.Errorf("mention of %d characters exceeds chunk budget of %d", len(mention), b.maxChars())
		}
		if count > 0 && (len(buffer)+len(mention)+1 > b.maxChars() || count == b.maxItems()) {
			if err := flush(buffer); err != nil {
				return err
			}
			buffer = ""
			count = 0
		}
		buffer += mention + " "
		count++
	}
	if len(buffer) > 0 {
		if err := flush(buffer); err != nil {
			return err
		}
	}

	if err := b.wait(ctx); err != nil {
		return err
	}
	if b.Summary != "" {
		return msg.Edit(ctx, b.Summary)
	}
	return msg.Delete(ctx)
}

// ============================================================================
// Disgo-backed Messenger
// ============================================================================

type channelMessenger struct {
	client    *bot.Client
	channelID snowflake.ID
}

// NewChannelMessenger returns a Messenger that posts into one channel or
// thread.
func NewChannelMessenger(client *bot.Client, channelID snowflake.ID) Messenger {
	return &channelMessenger{client: client, channelID: channelID}
}

func (m *channelMessenger) Send(ctx context.Context, content string) (MessageHandle, error) {
	msg, err := m.client.Rest.CreateMessage(m.channelID, discord.MessageCreate{
		Content: content,
	}, rest.WithCtx(ctx))
	if err != nil {
		return nil, err
	}
	return &channelMessage{client: m.client, channelID: m.channelID, messageID: msg.ID}, nil
}

type channelMessage struct {
	client    *bot.Client
	channelID snowflake.ID
	messageID snowflake.ID
}

func (m *channelMessage) Edit(ctx context.Context, content string) error {
	_, err := m.client.Rest.UpdateMessage(m.channelID, m.messageID,
		discord.NewMessageUpdateBuilder().SetContent(content).Build(), rest.WithCtx(ctx))
	return err
}

func (m *channelMessage) Delete(ctx context.Context) error {
	return m.client.Rest.DeleteMessage(m.channelID, m.messageID, rest.WithCtx(ctx))
}
