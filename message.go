package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
)

// ============================================================================
// Message Tooling Constants
// ============================================================================

const (
	MsgMessageBadID        = "`%s` is not a valid message id."
	MsgMessageFetchFail    = "Could not read that message: %v"
	MsgMessageNotOwn       = "I can only edit my own messages."
	MsgMessageSent         = "Message sent."
	MsgMessageEdited       = "Message updated."
	MsgMessagePinned       = "Message pinned."
	MsgMessageSendFail     = "Failed to send the message: %v"
	MsgMessageEditFail     = "Failed to edit the message: %v"
	MsgMessagePinFail      = "Failed to pin the message: %v"
	MsgMessageModalFail    = "Failed to open the form: %v"
	MsgMessageRespondError = "Failed to respond: %v"
	MsgEmbedSent           = "Embed sent."
	MsgEmbedTooBig         = "The embed is too large (%d/%d characters)."

	messageModalPrefix   = "msg:"
	embedSendModalPrefix = "embedsend:"

	embedTotalLimit = 6000
)

// ===========================
// Command Registration
// ===========================

func init() {
	adminPerm := discord.PermissionAdministrator

	RegisterModalHandler(messageModalPrefix, handleMessageModal)
	RegisterModalHandler(embedSendModalPrefix, handleEmbedSendModal)

	RegisterCommand(discord.SlashCommandCreate{
		Name:                     "message",
		Description:              "Speak through the bot (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "send",
				Description: "Send a message to this channel",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "edit",
				Description: "Edit a message the bot sent in this channel",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "message",
						Description: "The id of the message to edit",
						Required:    true,
					},
				},
			},
		},
	}, handleMessage)

	RegisterCommand(discord.SlashCommandCreate{
		Name:                     "embed",
		Description:              "Send an embed through the bot (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "send",
				Description: "Compose an embed for this channel",
			},
		},
	}, handleEmbed)

	RegisterCommand(discord.SlashCommandCreate{
		Name:                     "pin",
		Description:              "Pin a message by id (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:        "message",
				Description: "The id of the message to pin",
				Required:    true,
			},
		},
	}, handlePin)
}

// messageRespond sends an ephemeral response message
func messageRespond(event *events.ApplicationCommandInteractionCreate, content string) {
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
		LogError(MsgMessageRespondError, err)
	}
}

func modalRespond(event *events.ModalSubmitInteractionCreate, content string) {
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
		LogError(MsgMessageRespondError, err)
	}
}

// ===========================
// Message Targets
// ===========================

// MessageTarget identifies where modal-composed content lands: a fresh
// message in a channel, or an existing message to overwrite. The two cases
// share one Deliver path instead of branching on a flag at every call site.
type MessageTarget struct {
	channelID snowflake.ID
	messageID snowflake.ID // zero for a new message
}

func NewMessageTarget(channelID snowflake.ID) MessageTarget {
	return MessageTarget{channelID: channelID}
}

func ExistingMessageTarget(channelID, messageID snowflake.ID) MessageTarget {
	return MessageTarget{channelID: channelID, messageID: messageID}
}

// Deliver creates or overwrites the targeted message.
func (t MessageTarget) Deliver(ctx context.Context, client *bot.Client, content string) error {
	if t.messageID != 0 {
		_, err := client.Rest.UpdateMessage(t.channelID, t.messageID, discord.NewMessageUpdateBuilder().
			SetContent(content).
			Build(), rest.WithCtx(ctx))
		return err
	}
	_, err := client.Rest.CreateMessage(t.channelID, discord.NewMessageCreateBuilder().
		SetContent(content).
		Build(), rest.WithCtx(ctx))
	return err
}

// encode renders the target for a modal custom id; parseMessageTarget is its
// inverse.
func (t MessageTarget) encode() string {
	if t.messageID != 0 {
		return fmt.Sprintf("%s:%s", t.channelID, t.messageID)
	}
	return t.channelID.String()
}

func parseMessageTarget(s string) (MessageTarget, error) {
	chStr, msgStr, hasMessage := strings.Cut(s, ":")
	channelID, err := snowflake.Parse(chStr)
	if err != nil {
		return MessageTarget{}, err
	}
	if !hasMessage {
		return NewMessageTarget(channelID), nil
	}
	messageID, err := snowflake.Parse(msgStr)
	if err != nil {
		return MessageTarget{}, err
	}
	return ExistingMessageTarget(channelID, messageID), nil
}

// ===========================
// /message
// ===========================

func handleMessage(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	subCmd := data.SubCommandName
	if subCmd == nil {
		return
	}

	channelID := event.Channel().ID()

	switch *subCmd {
	case "send":
		err := event.Modal(discord.NewModalCreateBuilder().
			SetCustomID(messageModalPrefix + NewMessageTarget(channelID).encode()).
			SetTitle("Send Message").
			AddActionRow(discord.NewTextInput("content", discord.TextInputStyleParagraph, "Content").
				WithRequired(true).
				WithMaxLength(2000)).
			Build())
		if err != nil {
			messageRespond(event, fmt.Sprintf(MsgMessageModalFail, err))
		}
	case "edit":
		handleMessageEdit(event, data, channelID)
	}
}

func handleMessageEdit(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData, channelID snowflake.ID) {
	ctx, cancel := context.WithTimeout(AppContext, 30*time.Second)
	defer cancel()

	messageIDStr := data.String("message")
	messageID, err := snowflake.Parse(messageIDStr)
	if err != nil {
		messageRespond(event, fmt.Sprintf(MsgMessageBadID, messageIDStr))
		return
	}

	msg, err := event.Client().Rest.GetMessage(channelID, messageID, rest.WithCtx(ctx))
	if err != nil {
		messageRespond(event, fmt.Sprintf(MsgMessageFetchFail, err))
		return
	}
	if msg.Author.ID != event.Client().ApplicationID {
		messageRespond(event, MsgMessageNotOwn)
		return
	}

	err = event.Modal(discord.NewModalCreateBuilder().
		SetCustomID(messageModalPrefix + ExistingMessageTarget(channelID, messageID).encode()).
		SetTitle("Edit Message").
		AddActionRow(discord.NewTextInput("content", discord.TextInputStyleParagraph, "Content").
			WithRequired(true).
			WithMaxLength(2000).
			WithValue(msg.Content)).
		Build())
	if err != nil {
		messageRespond(event, fmt.Sprintf(MsgMessageModalFail, err))
	}
}

func handleMessageModal(event *events.ModalSubmitInteractionCreate) {
	ctx, cancel := context.WithTimeout(AppContext, 30*time.Second)
	defer cancel()

	raw := strings.TrimPrefix(event.Data.CustomID, messageModalPrefix)
	target, err := parseMessageTarget(raw)
	if err != nil {
		modalRespond(event, fmt.Sprintf(MsgMessageBadID, raw))
		return
	}

	content := event.Data.Text("content")
	if err := target.Deliver(ctx, event.Client(), content); err != nil {
		if target.messageID != 0 {
			modalRespond(event, fmt.Sprintf(MsgMessageEditFail, err))
		} else {
			modalRespond(event, fmt.Sprintf(MsgMessageSendFail, err))
		}
		return
	}
	if target.messageID != 0 {
		modalRespond(event, MsgMessageEdited)
	} else {
		modalRespond(event, MsgMessageSent)
	}
}

// ===========================
// /embed
// ===========================

func handleEmbed(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	subCmd := data.SubCommandName
	if subCmd == nil || *subCmd != "send" {
		return
	}

	channelID := event.Channel().ID()

	err := event.Modal(discord.NewModalCreateBuilder().
		SetCustomID(fmt.Sprintf("%s%s", embedSendModalPrefix, channelID)).
		SetTitle("Send Embed").
		AddActionRow(discord.NewTextInput("title", discord.TextInputStyleShort, "Title").
			WithMaxLength(256)).
		AddActionRow(discord.NewTextInput("description", discord.TextInputStyleParagraph, "Description").
			WithRequired(true).
			WithMaxLength(4000)).
		AddActionRow(discord.NewTextInput("fieldname", discord.TextInputStyleShort, "Field Name").
			WithRequired(false).
			WithMaxLength(256)).
		AddActionRow(discord.NewTextInput("fieldvalue", discord.TextInputStyleParagraph, "Field Value").
			WithRequired(false).
			WithMaxLength(1024)).
		AddActionRow(discord.NewTextInput("image", discord.TextInputStyleShort, "Image URL").
			WithRequired(false)).
		Build())
	if err != nil {
		messageRespond(event, fmt.Sprintf(MsgMessageModalFail, err))
	}
}

func handleEmbedSendModal(event *events.ModalSubmitInteractionCreate) {
	ctx, cancel := context.WithTimeout(AppContext, 30*time.Second)
	defer cancel()

	channelIDStr := strings.TrimPrefix(event.Data.CustomID, embedSendModalPrefix)
	channelID, err := snowflake.Parse(channelIDStr)
	if err != nil {
		modalRespond(event, fmt.Sprintf(MsgMessageBadID, channelIDStr))
		return
	}

	title := event.Data.Text("title")
	description := event.Data.Text("description")
	fieldName := event.Data.Text("fieldname")
	fieldValue := event.Data.Text("fieldvalue")
	image := event.Data.Text("image")

	total := len(title) + len(description) + len(fieldName) + len(fieldValue)
	if total > embedTotalLimit {
		modalRespond(event, fmt.Sprintf(MsgEmbedTooBig, total, embedTotalLimit))
		return
	}

	builder := discord.NewEmbedBuilder().
		SetTitle(title).
		SetDescription(description)
	if fieldName != "" && fieldValue != "" {
		builder.AddField(fieldName, fieldValue, false)
	}
	if image != "" {
		builder.SetImage(image)
	}

	_, err = event.Client().Rest.CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetEmbeds(builder.Build()).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		modalRespond(event, fmt.Sprintf(MsgMessageSendFail, err))
		return
	}
	modalRespond(event, MsgEmbedSent)
}

// ===========================
// /pin
// ===========================

func handlePin(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()

	ctx, cancel := context.WithTimeout(AppContext, 30*time.Second)
	defer cancel()

	messageIDStr := data.String("message")
	messageID, err := snowflake.Parse(messageIDStr)
	if err != nil {
		messageRespond(event, fmt.Sprintf(MsgMessageBadID, messageIDStr))
		return
	}

	channelID := event.Channel().ID()
	if err := event.Client().Rest.PinMessage(channelID, messageID, rest.WithCtx(ctx)); err != nil {
		messageRespond(event, fmt.Sprintf(MsgMessagePinFail, err))
		return
	}
	messageRespond(event, MsgMessagePinned)
}
