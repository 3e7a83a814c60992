package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
)

// ============================================================================
// Help Constants
// ============================================================================

const (
	MsgHelpTitle        = "Command Index"
	MsgHelpIntro        = "Pick a command below to see its subcommands."
	MsgHelpRespondError = "Failed to respond: %v"
	MsgPingReply        = "Pong! Gateway: `%dms`"
	MsgPingNoLatency    = "Pong! Gateway latency is not measured yet."

	helpSelectID = "help:command"
)

func init() {
	RegisterComponentHandler(helpSelectID, handleHelpSelect)

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "help",
		Description: "Browse the bot's commands",
	}, handleHelp)

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "ping",
		Description: "Check the bot's gateway latency",
	}, handlePing)
}

// helpCommandNames returns the registered slash command names, sorted.
func helpCommandNames() []string {
	var names []string
	for _, cmd := range commands {
		if c, ok := cmd.(discord.SlashCommandCreate); ok {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}

func helpCommandSummary(name string) string {
	for _, cmd := range commands {
		c, ok := cmd.(discord.SlashCommandCreate)
		if !ok || c.Name != name {
			continue
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("**/%s** — %s\n", c.Name, c.Description))
		for _, opt := range c.Options {
			if sub, ok := opt.(discord.ApplicationCommandOptionSubCommand); ok {
				sb.WriteString(fmt.Sprintf("\n`/%s %s` — %s", c.Name, sub.Name, sub.Description))
			}
		}
		return sb.String()
	}
	return ""
}

func helpSelectMenu() discord.StringSelectMenuComponent {
	var options []discord.StringSelectMenuOption
	for _, name := range helpCommandNames() {
		options = append(options, discord.NewStringSelectMenuOption("/"+name, name))
	}
	return discord.NewStringSelectMenu(helpSelectID, "Select a command", options...)
}

func handleHelp(event *events.ApplicationCommandInteractionCreate) {
	embed := discord.NewEmbedBuilder().
		SetTitle(MsgHelpTitle).
		SetDescription(MsgHelpIntro).
		Build()

	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		AddActionRow(helpSelectMenu()).
		SetEphemeral(true).
		Build())
	if err != nil {
		LogError(MsgHelpRespondError, err)
	}
}

func handleHelpSelect(event *events.ComponentInteractionCreate) {
	data := event.StringSelectMenuInteractionData()
	if len(data.Values) == 0 {
		return
	}

	summary := helpCommandSummary(data.Values[0])
	if summary == "" {
		summary = MsgHelpIntro
	}

	embed := discord.NewEmbedBuilder().
		SetTitle(MsgHelpTitle).
		SetDescription(summary).
		Build()

	err := event.UpdateMessage(discord.NewMessageUpdateBuilder().
		SetEmbeds(embed).
		AddActionRow(helpSelectMenu()).
		Build())
	if err != nil {
		LogError(MsgHelpRespondError, err)
	}
}

func handlePing(event *events.ApplicationCommandInteractionCreate) {
	ping := event.Client().Gateway.Latency()

	content := MsgPingNoLatency
	if ping > 0 {
		content = fmt.Sprintf(MsgPingReply, ping.Milliseconds())
	}

	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(content).
		SetEphemeral(true).
		Build())
	if err != nil {
		LogError(MsgHelpRespondError, err)
	}
}
