package main

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

// ============================================================================
// Directory Document Grammar
// ============================================================================
//
// A directory document is a line-oriented listing of tracked threads grouped
// by parent channel:
//
//	**Thread Directory:**
//
//	<#PARENT>:
//	 - <#THREAD>
//	 - <#THREAD>
//
// Only lines matching the item grammar below belong to the tracked set. Any
// other line (title, parent headers, stray human text) is rebuilt or dropped
// on the next encode.

const (
	DirectoryTitle = "**Thread Directory:**"

	directoryItemPrefix   = " - <#"
	directoryItemSuffix   = ">"
	directoryParentPrefix = "<#"
	directoryParentSuffix = ">:"
	directoryLineSep      = "\r\n"

	DirectoryContentBudget = 2000
	DirectoryFieldBudget   = 1024
	DirectoryEmbedBudget   = 6000
)

// ParentResolver maps a thread id to its parent channel id. Implementations
// may hit the network; the codec calls it at most once per unique id.
type ParentResolver func(id snowflake.ID) (snowflake.ID, error)

// CodecOptions controls how a directory document is rendered.
type CodecOptions struct {
	// Title is the header line of the document. Empty means DirectoryTitle.
	Title string
	// KeepHeader controls whether the title line is emitted at all. Human
	// free-text beyond the title never survives a re-encode either way.
	KeepHeader bool
	// ContentBudget / FieldBudget / EmbedBudget override the Discord size
	// limits; zero means the platform default.
	ContentBudget int
	FieldBudget   int
	EmbedBudget   int
}

func (o CodecOptions) title() string {
	if o.Title == "" {
		return DirectoryTitle
	}
	return o.Title
}

func (o CodecOptions) contentBudget() int {
	if o.ContentBudget <= 0 {
		return DirectoryContentBudget
	}
	return o.ContentBudget
}

func (o CodecOptions) fieldBudget() int {
	if o.FieldBudget <= 0 {
		return DirectoryFieldBudget
	}
	return o.FieldBudget
}

func (o CodecOptions) embedBudget() int {
	if o.EmbedBudget <= 0 {
		return DirectoryEmbedBudget
	}
	return o.EmbedBudget
}

// ============================================================================
// Errors
// ============================================================================

// ResolutionError reports a tracked id whose parent could not be resolved,
// usually because the underlying thread was deleted.
type ResolutionError struct {
	ID  snowflake.ID
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve parent of thread %s: %v", e.ID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// SizeExceededError reports a rendering that cannot fit its budget without
// splitting a single item line. The document is never truncated instead.
type SizeExceededError struct {
	Size   int
	Budget int
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("directory rendering of %d characters exceeds budget of %d", e.Size, e.Budget)
}

// ============================================================================
// Decode
// ============================================================================

// parseItemLine extracts the thread id from a single document line, if the
// line matches the item grammar exactly.
func parseItemLine(line string) (snowflake.ID, bool) {
	if !strings.HasPrefix(line, directoryItemPrefix) || !strings.HasSuffix(line, directoryItemSuffix) {
		return 0, false
	}
	raw := line[len(directoryItemPrefix) : len(line)-len(directoryItemSuffix)]
	if raw == "" {
		return 0, false
	}
	id, err := snowflake.Parse(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}

func itemLine(id snowflake.ID) string {
	return directoryItemPrefix + id.String() + directoryItemSuffix
}

func parentHeaderLine(id snowflake.ID) string {
	return directoryParentPrefix + id.String() + directoryParentSuffix
}

// decodeLines scans lines in order and collects every id that matches the
// item grammar, de-duplicating on first occurrence.
func decodeLines(lines []string, ids []snowflake.ID, seen map[snowflake.ID]struct{}) []snowflake.ID {
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		id, ok := parseItemLine(line)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// DecodeContent parses the plain-text form of a directory document into the
// ordered set of tracked thread ids. Lines that do not match the item grammar
// are ignored.
func DecodeContent(body string) []snowflake.ID {
	return decodeLines(strings.Split(body, "\n"), nil, map[snowflake.ID]struct{}{})
}

// DecodeFields parses the embed form of a directory document. Field order and
// line order within each field determine the resulting set order.
func DecodeFields(fields []discord.EmbedField) []snowflake.ID {
	var ids []snowflake.ID
	seen := map[snowflake.ID]struct{}{}
	for _, field := range fields {
		ids = decodeLines(strings.Split(field.Value, "\n"), ids, seen)
	}
	return ids
}

// ============================================================================
// Encode
// ============================================================================

type parentGroup struct {
	parent snowflake.ID
	items  []snowflake.ID
}

// groupByParent resolves every id (at most once each) and groups the set by
// parent channel, preserving first-seen parent order and per-group item order.
func groupByParent(ids []snowflake.ID, resolve ParentResolver) ([]parentGroup, error) {
	parents := map[snowflake.ID]snowflake.ID{}
	var groups []parentGroup
	index := map[snowflake.ID]int{}

	for _, id := range ids {
		parent, ok := parents[id]
		if !ok {
			var err error
			parent, err = resolve(id)
			if err != nil {
				return nil, &ResolutionError{ID: id, Err: err}
			}
			parents[id] = parent
		}
		if at, ok := index[parent]; ok {
			groups[at].items = append(groups[at].items, id)
			continue
		}
		index[parent] = len(groups)
		groups = append(groups, parentGroup{parent: parent, items: []snowflake.ID{id}})
	}
	return groups, nil
}

// EncodeContent renders the tracked set as the plain-text form of the
// directory document. Fails with SizeExceededError when the rendering does
// not fit the content budget.
func EncodeContent(ids []snowflake.ID, resolve ParentResolver, opts CodecOptions) (string, error) {
	groups, err := groupByParent(ids, resolve)
	if err != nil {
		return "", err
	}

	var parts []string
	if opts.KeepHeader {
		parts = append(parts, opts.title())
	}
	for _, group := range groups {
		header := parentHeaderLine(group.parent)
		if len(parts) > 0 {
			// Blank line before each group, except at the very top.
			header = directoryLineSep + header
		}
		parts = append(parts, header)
		for _, id := range group.items {
			parts = append(parts, itemLine(id))
		}
	}

	body := strings.Join(parts, directoryLineSep)
	if len(body) > opts.contentBudget() {
		return "", &SizeExceededError{Size: len(body), Budget: opts.contentBudget()}
	}
	return body, nil
}

// EncodeFields renders the tracked set as embed fields, one field per parent
// group. A group whose rendering exceeds the field budget overflows into
// unnamed continuation fields; item lines are never split across fields.
func EncodeFields(ids []snowflake.ID, resolve ParentResolver, opts CodecOptions) ([]discord.EmbedField, error) {
	groups, err := groupByParent(ids, resolve)
	if err != nil {
		return nil, err
	}

	budget := opts.fieldBudget()
	total := 0
	var fields []discord.EmbedField
	inline := false

	for _, group := range groups {
		name := parentHeaderLine(group.parent)
		var value strings.Builder
		flush := func(fieldName string) {
			fields = append(fields, discord.EmbedField{
				Name:   fieldName,
				Value:  strings.TrimSuffix(value.String(), "\n"),
				Inline: &inline,
			})
			total += len(fieldName) + value.Len()
			value.Reset()
		}

		for _, id := range group.items {
			line := itemLine(id)
			if len(line) > budget {
				return nil, &SizeExceededError{Size: len(line), Budget: budget}
			}
			if value.Len()+len(line)+1 > budget {
				flush(name)
				name = "​" // continuation field
			}
			value.WriteString(line)
			value.WriteString("\n")
		}
		if value.Len() > 0 {
			flush(name)
		}
	}

	if total > opts.embedBudget() {
		return nil, &SizeExceededError{Size: total, Budget: opts.embedBudget()}
	}
	return fields, nil
}
