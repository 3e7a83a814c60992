package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
)

// ============================================================================
// Setup Constants
// ============================================================================

const (
	MsgSetupGuildOnly     = "This command can only be used in a server."
	MsgSetupSaveFail      = "Failed to save settings: %v"
	MsgSetupBadMessageID  = "`%s` is not a valid message id."
	MsgSetupMessageGone   = "Could not read that message in <#%s>: %v"
	MsgSetupSaved         = "Settings saved."
	MsgSetupStatsHeader   = "**Server Configuration**"
	MsgSetupRespondError  = "Failed to respond: %v"
	MsgSetupParentBlocked = "Parent <#%s> is now ignored for new threads."
	MsgSetupParentAllowed = "Parent <#%s> is no longer ignored."
)

// ===========================
// Command Registration
// ===========================

func init() {
	adminPerm := discord.PermissionAdministrator

	RegisterCommand(discord.SlashCommandCreate{
		Name:                     "setup",
		Description:              "Server Configuration (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "directory",
				Description: "Point the bot at the directory message",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionChannel{
						Name:        "channel",
						Description: "The channel containing the directory message",
						Required:    true,
						ChannelTypes: []discord.ChannelType{
							discord.ChannelTypeGuildText,
						},
					},
					discord.ApplicationCommandOptionString{
						Name:        "message",
						Description: "The id of the directory message",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "style",
						Description: "How the directory is rendered",
						Choices: []discord.ApplicationCommandOptionChoiceString{
							{Name: "Plain text", Value: "content"},
							{Name: "Embed fields", Value: "embed"},
						},
					},
					discord.ApplicationCommandOptionBool{
						Name:        "header",
						Description: "Keep the title line on re-renders (default: true)",
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "pingrole",
				Description: "Set the role mentioned into new threads",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionRole{
						Name:        "role",
						Description: "The role to mention",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "ignore",
				Description: "Toggle a parent channel whose threads are left alone",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionChannel{
						Name:        "parent",
						Description: "The parent channel to toggle",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "stats",
				Description: "View the current configuration",
			},
		},
	}, handleSetup)
}

// setupRespond sends an ephemeral response message
func setupRespond(event *events.ApplicationCommandInteractionCreate, content string) {
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
		LogError(MsgSetupRespondError, err)
	}
}

// handleSetup routes setup subcommands to their respective handlers
func handleSetup(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	subCmd := data.SubCommandName
	if subCmd == nil {
		return
	}

	guildID := event.GuildID()
	if guildID == nil {
		setupRespond(event, MsgSetupGuildOnly)
		return
	}

	ctx, cancel := context.WithTimeout(AppContext, 30*time.Second)
	defer cancel()

	settings, err := GetGuildSettings(ctx, *guildID)
	if err != nil {
		setupRespond(event, fmt.Sprintf(MsgSetupSaveFail, err))
		return
	}

	switch *subCmd {
	case "directory":
		handleSetupDirectory(ctx, event, data, settings)
	case "pingrole":
		handleSetupPingRole(ctx, event, data, settings)
	case "ignore":
		handleSetupIgnore(ctx, event, data, settings)
	case "stats":
		handleSetupStats(event, settings)
	}
}

func handleSetupDirectory(ctx context.Context, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData, settings *GuildSettings) {
	ch, ok := data.OptChannel("channel")
	if !ok {
		return
	}

	messageIDStr := data.String("message")
	messageID, err := snowflake.Parse(messageIDStr)
	if err != nil {
		setupRespond(event, fmt.Sprintf(MsgSetupBadMessageID, messageIDStr))
		return
	}

	if style, ok := data.OptString("style"); ok {
		settings.DirectoryStyle = ParseDirectoryStyle(style)
	}
	if header, ok := data.OptBool("header"); ok {
		settings.KeepHeader = header
	}
	settings.DirectoryChannelID = ch.ID
	settings.DirectoryMessageID = messageID

	// Probe the message once so a typo fails loudly here, not on the first
	// thread event.
	store := NewMessageStore(event.Client(), ch.ID, messageID, settings.DirectoryStyle, DirectoryTitle)
	if _, err := store.Fetch(ctx); err != nil {
		setupRespond(event, fmt.Sprintf(MsgSetupMessageGone, ch.ID, err))
		return
	}

	if err := SetGuildSettings(ctx, settings); err != nil {
		setupRespond(event, fmt.Sprintf(MsgSetupSaveFail, err))
		return
	}
	setupRespond(event, MsgSetupSaved)
}

func handleSetupPingRole(ctx context.Context, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData, settings *GuildSettings) {
	role, ok := data.OptRole("role")
	if !ok {
		return
	}

	settings.PingRoleID = role.ID
	if err := SetGuildSettings(ctx, settings); err != nil {
		setupRespond(event, fmt.Sprintf(MsgSetupSaveFail, err))
		return
	}
	setupRespond(event, MsgSetupSaved)
}

func handleSetupIgnore(ctx context.Context, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData, settings *GuildSettings) {
	parent, ok := data.OptChannel("parent")
	if !ok {
		return
	}

	if settings.IsParentBlocked(parent.ID) {
		kept := settings.BlockedParents[:0]
		for _, id := range settings.BlockedParents {
			if id != parent.ID {
				kept = append(kept, id)
			}
		}
		settings.BlockedParents = kept
		if err := SetGuildSettings(ctx, settings); err != nil {
			setupRespond(event, fmt.Sprintf(MsgSetupSaveFail, err))
			return
		}
		setupRespond(event, fmt.Sprintf(MsgSetupParentAllowed, parent.ID))
		return
	}

	settings.BlockedParents = append(settings.BlockedParents, parent.ID)
	if err := SetGuildSettings(ctx, settings); err != nil {
		setupRespond(event, fmt.Sprintf(MsgSetupSaveFail, err))
		return
	}
	setupRespond(event, fmt.Sprintf(MsgSetupParentBlocked, parent.ID))
}

func handleSetupStats(event *events.ApplicationCommandInteractionCreate, settings *GuildSettings) {
	var sb strings.Builder
	sb.WriteString(MsgSetupStatsHeader)
	sb.WriteString("\n\n")

	if settings.HasDirectory() {
		sb.WriteString(fmt.Sprintf("**Directory:** <#%s> (message `%s`)\n", settings.DirectoryChannelID, settings.DirectoryMessageID))
		sb.WriteString(fmt.Sprintf("**Style:** `%s`\n", settings.DirectoryStyle))
		sb.WriteString(fmt.Sprintf("**Header kept:** `%t`\n", settings.KeepHeader))
	} else {
		sb.WriteString("**Directory:** `not configured`\n")
	}

	if settings.PingRoleID != 0 {
		sb.WriteString(fmt.Sprintf("**Ping role:** <@&%s>\n", settings.PingRoleID))
	} else {
		sb.WriteString("**Ping role:** `none`\n")
	}

	if len(settings.BlockedParents) > 0 {
		var parts []string
		for _, id := range settings.BlockedParents {
			parts = append(parts, fmt.Sprintf("<#%s>", id))
		}
		sb.WriteString("**Ignored parents:** " + strings.Join(parts, ", ") + "\n")
	}

	setupRespond(event, sb.String())
}
