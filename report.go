package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

// ============================================================================
// Report System Constants
// ============================================================================

const (
	MsgReportNotConfigured = "Reporting is not configured on this instance."
	MsgReportThanks        = "Thanks! Your report has been forwarded."
	MsgRequestThanks       = "Thanks! Your request has been forwarded."
	MsgReportDeliverFail   = "Failed to forward the report: %v"
	MsgReportModalFail     = "Failed to open the form: %v"
	MsgReportRespondError  = "Failed to respond: %v"
	MsgReportBadWebhookURL = "REPORT_WEBHOOK_URL is malformed"

	reportBugModalID      = "reportbug"
	requestFeatureModalID = "requestfeature"
	reportEmbedColorBug   = 0xe74c3c
	reportEmbedColorIdea  = 0x2ecc71
)

// ===========================
// Command Registration
// ===========================

func init() {
	RegisterModalHandler(reportBugModalID, handleReportBugModal)
	RegisterModalHandler(requestFeatureModalID, handleRequestFeatureModal)

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "report",
		Description: "Report a problem to the maintainers",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "bug",
				Description: "Report a bug",
			},
		},
	}, handleReport)

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "request",
		Description: "Suggest something to the maintainers",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "feature",
				Description: "Request a feature",
			},
		},
	}, handleRequest)
}

// ===========================
// Webhook Delivery
// ===========================

// parseWebhookURL splits a Discord webhook URL into its id and token.
func parseWebhookURL(url string) (snowflake.ID, string, error) {
	_, tail, found := strings.Cut(url, "/webhooks/")
	if !found {
		return 0, "", fmt.Errorf(MsgReportBadWebhookURL)
	}
	parts := strings.Split(strings.TrimSuffix(tail, "/"), "/")
	if len(parts) < 2 {
		return 0, "", fmt.Errorf(MsgReportBadWebhookURL)
	}
	id, err := snowflake.Parse(parts[0])
	if err != nil {
		return 0, "", fmt.Errorf(MsgReportBadWebhookURL)
	}
	return id, parts[1], nil
}

func deliverReport(ctx context.Context, event *events.ModalSubmitInteractionCreate, kind string, color int, summary, details string) error {
	hookID, hookToken, err := parseWebhookURL(GlobalConfig.ReportWebhookURL)
	if err != nil {
		return err
	}

	user := event.User()
	embed := discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("%s: %s", kind, truncate(summary, 200))).
		SetDescription(details).
		SetColor(color).
		SetFooter(fmt.Sprintf("%s (%s)", user.Username, user.ID), "").
		SetTimestamp(time.Now()).
		Build()

	_, err = event.Client().Rest.CreateWebhookMessage(hookID, hookToken, discord.WebhookMessageCreate{
		Embeds: []discord.Embed{embed},
	}, rest.CreateWebhookMessageParams{Wait: false}, rest.WithCtx(ctx))
	return err
}

// ===========================
// Handlers
// ===========================

func reportRespond(event *events.ModalSubmitInteractionCreate, content string) {
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
		LogReport(MsgReportRespondError, err)
	}
}

func openReportModal(event *events.ApplicationCommandInteractionCreate, customID, title, summaryLabel, detailLabel string) {
	if GlobalConfig == nil || GlobalConfig.ReportWebhookURL == "" {
		err := event.CreateMessage(discord.NewMessageCreateBuilder().
			SetContent(MsgReportNotConfigured).
			SetEphemeral(true).
			Build())
		if err != nil {
			LogReport(MsgReportRespondError, err)
		}
		return
	}

	err := event.Modal(discord.NewModalCreateBuilder().
		SetCustomID(customID).
		SetTitle(title).
		AddActionRow(discord.NewTextInput("summary", discord.TextInputStyleShort, summaryLabel).
			WithRequired(true).
			WithMaxLength(200)).
		AddActionRow(discord.NewTextInput("details", discord.TextInputStyleParagraph, detailLabel).
			WithRequired(true).
			WithMaxLength(2000)).
		Build())
	if err != nil {
		LogReport(MsgReportModalFail, err)
	}
}

func handleReport(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	if subCmd := data.SubCommandName; subCmd == nil || *subCmd != "bug" {
		return
	}
	openReportModal(event, reportBugModalID, "Report a Bug", "What went wrong?", "Steps to reproduce, expected vs actual")
}

func handleRequest(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	if subCmd := data.SubCommandName; subCmd == nil || *subCmd != "feature" {
		return
	}
	openReportModal(event, requestFeatureModalID, "Request a Feature", "What should the bot do?", "Why would it help?")
}

func handleReportBugModal(event *events.ModalSubmitInteractionCreate) {
	ctx, cancel := context.WithTimeout(AppContext, 30*time.Second)
	defer cancel()

	summary := event.Data.Text("summary")
	details := event.Data.Text("details")
	if err := deliverReport(ctx, event, "Bug", reportEmbedColorBug, summary, details); err != nil {
		LogReport(MsgReportDeliverFail, err)
		reportRespond(event, fmt.Sprintf(MsgReportDeliverFail, err))
		return
	}
	LogReport("Bug report forwarded from %s", event.User().ID)
	reportRespond(event, MsgReportThanks)
}

func handleRequestFeatureModal(event *events.ModalSubmitInteractionCreate) {
	ctx, cancel := context.WithTimeout(AppContext, 30*time.Second)
	defer cancel()

	summary := event.Data.Text("summary")
	details := event.Data.Text("details")
	if err := deliverReport(ctx, event, "Feature", reportEmbedColorIdea, summary, details); err != nil {
		LogReport(MsgReportDeliverFail, err)
		reportRespond(event, fmt.Sprintf(MsgReportDeliverFail, err))
		return
	}
	LogReport("Feature request forwarded from %s", event.User().ID)
	reportRespond(event, MsgRequestThanks)
}
