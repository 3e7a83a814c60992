package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/omit"
)

// ============================================================================
// Tag System Constants
// ============================================================================

const (
	MsgTagNotFound      = "No tag named `%s` exists."
	MsgTagSet           = "Tag `%s` saved."
	MsgTagRemoved       = "Tag `%s` removed."
	MsgTagSaveFail      = "Failed to save tag: %v"
	MsgTagListHeader    = "**Available Tags**"
	MsgTagListEmpty     = "No tags are defined yet."
	MsgTagRespondError  = "Failed to respond: %v"
	MsgTagLookupFail    = "Failed to look up tag %s: %v"
	MsgTagInvalidName   = "Tag names may only contain letters, digits and dashes."
	MsgTagContentTooBig = "Tag content must stay under %d characters."

	tagPrefix       = "!"
	tagListKeyword  = "tags"
	tagContentLimit = 1900
	tagNameLimit    = 32
)

// ===========================
// Command Registration
// ===========================

func init() {
	adminPerm := discord.PermissionAdministrator

	RegisterMessageCreateHandler(onTagMessage)
	RegisterAutocompleteHandler("tag", handleTagAutocomplete)

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "tag",
		Description: "Canned response utilities",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "show",
				Description: "Post a tag in this channel",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:         "name",
						Description:  "The tag to post",
						Required:     true,
						Autocomplete: true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "list",
				Description: "List all tags",
			},
		},
	}, handleTag)

	RegisterCommand(discord.SlashCommandCreate{
		Name:                     "tagadmin",
		Description:              "Tag management (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "set",
				Description: "Create or overwrite a tag",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "name",
						Description: "The tag name",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "content",
						Description: "The tag content",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "remove",
				Description: "Delete a tag",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:         "name",
						Description:  "The tag to delete",
						Required:     true,
						Autocomplete: true,
					},
				},
			},
		},
	}, handleTagAdmin)
	RegisterAutocompleteHandler("tagadmin", handleTagAutocomplete)
}

// ===========================
// Helpers
// ===========================

func isValidTagName(name string) bool {
	if name == "" || len(name) > tagNameLimit {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func tagListContent(tags []*Tag) string {
	if len(tags) == 0 {
		return MsgTagListHeader + "\n\n" + MsgTagListEmpty
	}
	var sb strings.Builder
	sb.WriteString(MsgTagListHeader)
	sb.WriteString("\n\n")
	for _, t := range tags {
		sb.WriteString(fmt.Sprintf("`%s%s` — %s\n", tagPrefix, t.Name, truncate(t.Content, 60)))
	}
	return sb.String()
}

// tagRespond sends an ephemeral response message
func tagRespond(event *events.ApplicationCommandInteractionCreate, content string) {
	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(
			discord.NewContainer(
				discord.NewTextDisplay(content),
			),
		).
		SetEphemeral(true).
		Build())
	if err != nil {
		LogTag(MsgTagRespondError, err)
	}
}

// ===========================
// Message Prefix Listener
// ===========================

// onTagMessage answers !tags and !<name> in guild channels.
func onTagMessage(event *events.MessageCreate) {
	if event.Message.Author.Bot || event.GuildID == nil {
		return
	}
	content := strings.TrimSpace(event.Message.Content)
	if !strings.HasPrefix(content, tagPrefix) {
		return
	}
	name := strings.ToLower(strings.TrimPrefix(content, tagPrefix))
	if strings.ContainsAny(name, " \t\n") || name == "" {
		return
	}

	ctx, cancel := context.WithTimeout(AppContext, 15*time.Second)
	defer cancel()

	var reply string
	if name == tagListKeyword {
		tags, err := ListTags(ctx)
		if err != nil {
			LogTag(MsgTagLookupFail, name, err)
			return
		}
		reply = tagListContent(tags)
	} else {
		if !isValidTagName(name) {
			return
		}
		tag, err := GetTag(ctx, name)
		if err != nil {
			LogTag(MsgTagLookupFail, name, err)
			return
		}
		if tag == nil {
			// Unknown names stay silent; anything starting with ! could be
			// ordinary chatter.
			return
		}
		reply = tag.Content
	}

	_, err := event.Client().Rest.CreateMessage(event.ChannelID, discord.NewMessageCreateBuilder().
		SetContent(reply).
		SetMessageReferenceByID(event.Message.ID).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		LogTag("Failed to answer tag %s: %v", name, err)
	}
}

// ===========================
// Slash Command Handlers
// ===========================

func handleTag(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	subCmd := data.SubCommandName
	if subCmd == nil {
		return
	}

	ctx, cancel := context.WithTimeout(AppContext, 15*time.Second)
	defer cancel()

	switch *subCmd {
	case "show":
		name := strings.ToLower(data.String("name"))
		tag, err := GetTag(ctx, name)
		if err != nil {
			tagRespond(event, fmt.Sprintf(MsgTagSaveFail, err))
			return
		}
		if tag == nil {
			tagRespond(event, fmt.Sprintf(MsgTagNotFound, name))
			return
		}
		// Tags are posted publicly; that is their point.
		err = event.CreateMessage(discord.NewMessageCreateBuilder().
			SetContent(tag.Content).
			Build())
		if err != nil {
			LogTag(MsgTagRespondError, err)
		}
	case "list":
		tags, err := ListTags(ctx)
		if err != nil {
			tagRespond(event, fmt.Sprintf(MsgTagSaveFail, err))
			return
		}
		tagRespond(event, tagListContent(tags))
	}
}

func handleTagAdmin(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	subCmd := data.SubCommandName
	if subCmd == nil {
		return
	}

	ctx, cancel := context.WithTimeout(AppContext, 15*time.Second)
	defer cancel()

	name := strings.ToLower(data.String("name"))
	if !isValidTagName(name) || name == tagListKeyword {
		tagRespond(event, MsgTagInvalidName)
		return
	}

	switch *subCmd {
	case "set":
		content := data.String("content")
		if len(content) > tagContentLimit {
			tagRespond(event, fmt.Sprintf(MsgTagContentTooBig, tagContentLimit))
			return
		}
		if err := SetTag(ctx, name, content); err != nil {
			tagRespond(event, fmt.Sprintf(MsgTagSaveFail, err))
			return
		}
		tagRespond(event, fmt.Sprintf(MsgTagSet, name))
	case "remove":
		removed, err := RemoveTag(ctx, name)
		if err != nil {
			tagRespond(event, fmt.Sprintf(MsgTagSaveFail, err))
			return
		}
		if !removed {
			tagRespond(event, fmt.Sprintf(MsgTagNotFound, name))
			return
		}
		tagRespond(event, fmt.Sprintf(MsgTagRemoved, name))
	}
}

// handleTagAutocomplete suggests existing tag names
func handleTagAutocomplete(event *events.AutocompleteInteractionCreate) {
	focusedValue := ""
	for _, opt := range event.Data.Options {
		if opt.Focused {
			focusedValue = strings.ToLower(opt.String())
			break
		}
	}

	tags, err := ListTags(AppContext)
	if err != nil {
		LogTag(MsgTagLookupFail, focusedValue, err)
		return
	}

	var choices []discord.AutocompleteChoice
	for _, t := range tags {
		if focusedValue == "" || strings.Contains(t.Name, focusedValue) {
			choices = append(choices, discord.AutocompleteChoiceString{
				Name:  t.Name,
				Value: t.Name,
			})
		}
		if len(choices) >= 25 {
			break
		}
	}

	event.AutocompleteResult(choices)
}
