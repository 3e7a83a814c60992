package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"
)

// ============================================================================
// Document Store
// ============================================================================

// DirectoryStyle selects which of the two document forms a guild uses.
type DirectoryStyle int

const (
	StyleContent DirectoryStyle = iota
	StyleEmbed
)

func ParseDirectoryStyle(s string) DirectoryStyle {
	if s == "embed" {
		return StyleEmbed
	}
	return StyleContent
}

func (s DirectoryStyle) String() string {
	if s == StyleEmbed {
		return "embed"
	}
	return "content"
}

// Document is the raw body of a directory message in either form.
type Document struct {
	Content string
	Fields  []discord.EmbedField
}

// DocumentStore fetches and overwrites the single external directory
// document. Implementations perform no retries; the caller owns that.
type DocumentStore interface {
	Fetch(ctx context.Context) (*Document, error)
	Write(ctx context.Context, doc *Document) error
}

// ErrDocumentNotFound is returned when the configured directory message does
// not exist on the platform.
var ErrDocumentNotFound = errors.New("directory document not found")

// WriteIndeterminateError reports a failed write after a successful fetch and
// encode. The remote document may or may not match the attempted state, so
// the caller must retry the whole operation rather than assume success.
type WriteIndeterminateError struct {
	Err error
}

func (e *WriteIndeterminateError) Error() string {
	return fmt.Sprintf("directory write failed, remote state indeterminate: %v", e.Err)
}

func (e *WriteIndeterminateError) Unwrap() error { return e.Err }

// ============================================================================
// Directory Mutator
// ============================================================================

// Directory applies single-thread mutations to one directory document as an
// unguarded read-modify-write cycle. Both operations are idempotent and write
// at most once; concurrent mutations of the same document can still lose an
// update since the platform exposes no compare-and-swap on message edits.
type Directory struct {
	Store   DocumentStore
	Resolve ParentResolver
	Style   DirectoryStyle
	Options CodecOptions
}

func (d *Directory) decode(doc *Document) []snowflake.ID {
	if d.Style == StyleEmbed {
		return DecodeFields(doc.Fields)
	}
	return DecodeContent(doc.Content)
}

func (d *Directory) encode(ids []snowflake.ID) (*Document, error) {
	if d.Style == StyleEmbed {
		fields, err := EncodeFields(ids, d.Resolve, d.Options)
		if err != nil {
			return nil, err
		}
		return &Document{Fields: fields}, nil
	}
	content, err := EncodeContent(ids, d.Resolve, d.Options)
	if err != nil {
		return nil, err
	}
	return &Document{Content: content}, nil
}

// Add inserts a thread into the directory. Returns false without writing when
// the thread is already tracked. A ResolutionError aborts the mutation.
func (d *Directory) Add(ctx context.Context, id snowflake.ID) (bool, error) {
	doc, err := d.Store.Fetch(ctx)
	if err != nil {
		return false, err
	}

	ids := d.decode(doc)
	for _, existing := range ids {
		if existing == id {
			return false, nil
		}
	}
	ids = append(ids, id)

	next, err := d.encode(ids)
	if err != nil {
		return false, err
	}
	if err := d.Store.Write(ctx, next); err != nil {
		return false, &WriteIndeterminateError{Err: err}
	}
	return true, nil
}

// Remove deletes a thread from the directory. Returns false without writing
// when the thread is not tracked. Other tracked threads that can no longer be
// resolved are dropped along the way instead of blocking the removal.
func (d *Directory) Remove(ctx context.Context, id snowflake.ID) (bool, error) {
	doc, err := d.Store.Fetch(ctx)
	if err != nil {
		return false, err
	}

	ids := d.decode(doc)
	kept := ids[:0]
	found := false
	for _, existing := range ids {
		if existing == id {
			found = true
			continue
		}
		kept = append(kept, existing)
	}
	if !found {
		return false, nil
	}

	next, err := d.encode(kept)
	for err != nil {
		var resolution *ResolutionError
		if !errors.As(err, &resolution) {
			return false, err
		}
		kept = withoutID(kept, resolution.ID)
		next, err = d.encode(kept)
	}

	if err := d.Store.Write(ctx, next); err != nil {
		return false, &WriteIndeterminateError{Err: err}
	}
	return true, nil
}

// Items returns the currently tracked set in document order.
func (d *Directory) Items(ctx context.Context) ([]snowflake.ID, error) {
	doc, err := d.Store.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return d.decode(doc), nil
}

func withoutID(ids []snowflake.ID, id snowflake.ID) []snowflake.ID {
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return kept
}

// ============================================================================
// Disgo-backed Store
// ============================================================================

// directoryWriteLimiter paces directory message edits across all guilds so a
// burst of thread events cannot trip the global rest rate limit.
var directoryWriteLimiter = rate.NewLimiter(rate.Every(2*time.Second), 3)

type messageStore struct {
	client    *bot.Client
	channelID snowflake.ID
	messageID snowflake.ID
	style     DirectoryStyle
	title     string
}

// NewMessageStore returns a DocumentStore backed by one editable message.
func NewMessageStore(client *bot.Client, channelID, messageID snowflake.ID, style DirectoryStyle, title string) DocumentStore {
	return &messageStore{
		client:    client,
		channelID: channelID,
		messageID: messageID,
		style:     style,
		title:     title,
	}
}

func (s *messageStore) Fetch(ctx context.Context) (*Document, error) {
	msg, err := s.client.Rest.GetMessage(s.channelID, s.messageID, rest.WithCtx(ctx))
	if err != nil {
		if isUnknownMessage(err) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to fetch directory message: %w", err)
	}

	doc := &Document{Content: msg.Content}
	if len(msg.Embeds) > 0 {
		doc.Fields = msg.Embeds[0].Fields
	}
	return doc, nil
}

func (s *messageStore) Write(ctx context.Context, doc *Document) error {
	if err := directoryWriteLimiter.Wait(ctx); err != nil {
		return err
	}

	update := discord.NewMessageUpdateBuilder()
	if s.style == StyleEmbed {
		update.SetContent("")
		update.SetEmbeds(discord.NewEmbedBuilder().
			SetTitle(s.title).
			SetFields(doc.Fields...).
			Build())
	} else {
		update.SetContent(doc.Content)
		update.SetEmbeds()
	}

	_, err := s.client.Rest.UpdateMessage(s.channelID, s.messageID, update.Build(), rest.WithCtx(ctx))
	if err != nil {
		if isUnknownMessage(err) {
			return ErrDocumentNotFound
		}
		return err
	}
	return nil
}

// isUnknownMessage matches the platform's unknown-message rejection (JSON
// code 10008) without depending on the rest error's internal shape.
func isUnknownMessage(err error) bool {
	if err == nil {
		return false
	}
	text := err.Error()
	return strings.Contains(text, "Unknown Message") || strings.Contains(text, "10008")
}

// isUnknownChannel matches the unknown-channel rejection (JSON code 10003),
// the signal that a tracked thread was actually deleted rather than merely
// unreachable.
func isUnknownChannel(err error) bool {
	if err == nil {
		return false
	}
	text := err.Error()
	return strings.Contains(text, "Unknown Channel") || strings.Contains(text, "10003")
}
