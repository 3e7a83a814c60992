package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"
)

// ============================================================================
// Thread Directory Constants
// ============================================================================

const (
	MsgThreadGuildOnly       = "This command can only be used in a server."
	MsgThreadNoDirectory     = "No directory message is configured for this server. Use `/setup` first."
	MsgThreadNotAThread      = "That channel is not a thread."
	MsgThreadAdded           = "Thread <#%s> added to the directory."
	MsgThreadAlreadyListed   = "Thread <#%s> is already in the directory."
	MsgThreadRemoved         = "Thread <#%s> removed from the directory."
	MsgThreadNotListed       = "Thread <#%s> is not in the directory."
	MsgThreadMutationFail    = "Directory update failed: %v"
	MsgThreadStatsHeader     = "**Thread Directory Status**"
	MsgThreadStatsEmpty      = "The directory is empty."
	MsgThreadStatsFetchFail  = "Failed to read the directory: %v"
	MsgThreadRespondError    = "Failed to respond: %v"
	MsgThreadEventAddFail    = "Failed to add thread %s to directory: %v"
	MsgThreadEventRemoveFail = "Failed to remove thread %s from directory: %v"
	MsgThreadJoinFail        = "Failed to join thread %s: %v"
	MsgThreadSettingsFail    = "Failed to load settings for guild %s: %v"

	MsgBellAdded      = "Bell added to <#%s>."
	MsgBellRemoved    = "Bell removed from <#%s>."
	MsgBellAlready    = "<#%s> already has a bell."
	MsgBellMissing    = "<#%s> has no bell to remove."
	MsgBellRenameFail = "Failed to rename the thread: %v"

	MsgBroadcastSummary     = "Added %d members to the thread."
	MsgBroadcastMembersFail = "Failed to fetch role members for guild %s: %v"
	MsgBroadcastDeliverFail = "Broadcast in thread %s failed: %v"

	bellPrefix = "🔔"
)

// broadcastLimiter paces placeholder edits across all concurrent broadcasts.
var broadcastLimiter = rate.NewLimiter(rate.Every(time.Second), 2)

// ===========================
// Command Registration
// ===========================

func init() {
	adminPerm := discord.PermissionAdministrator
	threadTypes := []discord.ChannelType{
		discord.ChannelTypeGuildPublicThread,
		discord.ChannelTypeGuildPrivateThread,
	}

	OnClientReady(func(ctx context.Context, client *bot.Client) {
		RegisterDaemon(LogJanitor, func(ctx context.Context) (bool, func(), func()) { return StartDirectoryJanitor(ctx, client) })
	})

	RegisterThreadCreateHandler(onGuildThreadCreate)
	RegisterThreadUpdateHandler(onGuildThreadUpdate)
	RegisterThreadDeleteHandler(onGuildThreadDelete)

	RegisterCommand(discord.SlashCommandCreate{
		Name:                     "thread",
		Description:              "Thread Directory Utilities (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "add",
				Description: "Add a thread to the directory",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionChannel{
						Name:         "thread",
						Description:  "The thread to add",
						Required:     true,
						ChannelTypes: threadTypes,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "remove",
				Description: "Remove a thread from the directory",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionChannel{
						Name:         "thread",
						Description:  "The thread to remove",
						Required:     true,
						ChannelTypes: threadTypes,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "stats",
				Description: "View the current directory contents",
			},
		},
	}, handleThread)

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "bell",
		Description: "Toggle the bell marker on a thread name",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "add",
				Description: "Prefix the thread name with a bell",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionChannel{
						Name:         "thread",
						Description:  "The thread to mark (defaults to the current one)",
						ChannelTypes: threadTypes,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "remove",
				Description: "Strip the bell from the thread name",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionChannel{
						Name:         "thread",
						Description:  "The thread to unmark (defaults to the current one)",
						ChannelTypes: threadTypes,
					},
				},
			},
		},
	}, handleBell)
}

// ===========================
// Directory Wiring
// ===========================

// threadParentResolver resolves a thread's parent channel, cache first.
func threadParentResolver(ctx context.Context, client *bot.Client) ParentResolver {
	return func(id snowflake.ID) (snowflake.ID, error) {
		if ch, ok := client.Caches.Channel(id); ok {
			if thread, ok := ch.(discord.GuildThread); ok && thread.ParentID() != nil {
				return *thread.ParentID(), nil
			}
		}

		channel, err := client.Rest.GetChannel(id, rest.WithCtx(ctx))
		if err != nil {
			return 0, err
		}
		thread, ok := channel.(discord.GuildThread)
		if !ok || thread.ParentID() == nil {
			return 0, fmt.Errorf("channel %s is not a thread", id)
		}
		return *thread.ParentID(), nil
	}
}

// guildDirectory builds the directory mutator for a guild, or nil when the
// guild has no directory message configured.
func guildDirectory(ctx context.Context, client *bot.Client, settings *GuildSettings) *Directory {
	if !settings.HasDirectory() {
		return nil
	}
	return &Directory{
		Store:   NewMessageStore(client, settings.DirectoryChannelID, settings.DirectoryMessageID, settings.DirectoryStyle, DirectoryTitle),
		Resolve: threadParentResolver(ctx, client),
		Style:   settings.DirectoryStyle,
		Options: CodecOptions{KeepHeader: settings.KeepHeader},
	}
}

// ===========================
// Gateway Event Handlers
// ===========================

func onGuildThreadCreate(event *events.ThreadCreate) {
	client := event.Client()
	ctx, cancel := context.WithTimeout(AppContext, 2*time.Minute)
	defer cancel()

	settings, err := GetGuildSettings(ctx, event.GuildID)
	if err != nil {
		LogThread(MsgThreadSettingsFail, event.GuildID, err)
		return
	}
	if settings.IsParentBlocked(event.ParentID) {
		return
	}

	if err := client.Rest.JoinThread(event.ThreadID, rest.WithCtx(ctx)); err != nil {
		LogThread(MsgThreadJoinFail, event.ThreadID, err)
	}

	if settings.PingRoleID != 0 {
		broadcastRoleMembers(ctx, client, event.GuildID, settings.PingRoleID, event.ThreadID)
	}

	if dir := guildDirectory(ctx, client, settings); dir != nil {
		if added, err := dir.Add(ctx, event.ThreadID); err != nil {
			LogThread(MsgThreadEventAddFail, event.ThreadID, err)
		} else if added {
			LogDirectory("Tracked new thread %s", event.ThreadID)
		}
	}
}

func onGuildThreadUpdate(event *events.ThreadUpdate) {
	// Only archive/lock transitions untrack a thread.
	wasOpen := !event.OldThread.ThreadMetadata.Archived && !event.OldThread.ThreadMetadata.Locked
	nowClosed := event.Thread.ThreadMetadata.Archived || event.Thread.ThreadMetadata.Locked
	if !wasOpen || !nowClosed {
		return
	}
	untrackThread(event.Client(), event.GuildID, event.Thread.ID())
}

func onGuildThreadDelete(event *events.ThreadDelete) {
	untrackThread(event.Client(), event.GuildID, event.ThreadID)
}

func untrackThread(client *bot.Client, guildID snowflake.ID, threadID snowflake.ID) {
	ctx, cancel := context.WithTimeout(AppContext, 2*time.Minute)
	defer cancel()

	settings, err := GetGuildSettings(ctx, guildID)
	if err != nil {
		LogThread(MsgThreadSettingsFail, guildID, err)
		return
	}
	dir := guildDirectory(ctx, client, settings)
	if dir == nil {
		return
	}
	if removed, err := dir.Remove(ctx, threadID); err != nil {
		LogThread(MsgThreadEventRemoveFail, threadID, err)
	} else if removed {
		LogDirectory("Untracked thread %s", threadID)
	}
}

// ===========================
// Mention Broadcast
// ===========================

const memberPageSize = 1000

// memberPager fetches one page of guild members after the given user id.
type memberPager func(after snowflake.ID) ([]discord.Member, error)

// collectRoleMentions pages through the member list and collects a mention
// for every non-bot holder of the role, in listing order.
func collectRoleMentions(fetch memberPager, roleID snowflake.ID) ([]string, error) {
	var mentions []string
	var after snowflake.ID
	for {
		members, err := fetch(after)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if m.User.Bot {
				continue
			}
			for _, r := range m.RoleIDs {
				if r == roleID {
					mentions = append(mentions, fmt.Sprintf("<@%s>", m.User.ID))
					break
				}
			}
		}
		if len(members) < memberPageSize {
			return mentions, nil
		}
		after = members[len(members)-1].User.ID
	}
}

// broadcastRoleMembers pings every member of the role into the new thread in
// budgeted chunks.
func broadcastRoleMembers(ctx context.Context, client *bot.Client, guildID, roleID, threadID snowflake.ID) {
	mentions, err := collectRoleMentions(func(after snowflake.ID) ([]discord.Member, error) {
		return client.Rest.GetMembers(guildID, memberPageSize, after, rest.WithCtx(ctx))
	}, roleID)
	if err != nil {
		LogThread(MsgBroadcastMembersFail, guildID, err)
		return
	}

	b := &Broadcaster{
		Placeholder: MsgBroadcastPlaceholder,
		Summary:     fmt.Sprintf(MsgBroadcastSummary, len(mentions)),
		Empty:       MsgBroadcastNoRecipients,
		Limiter:     broadcastLimiter,
	}
	if err := b.Broadcast(ctx, NewChannelMessenger(client, threadID), mentions); err != nil {
		LogThread(MsgBroadcastDeliverFail, threadID, err)
	}
}

// ===========================
// Slash Command Handlers
// ===========================

// threadRespond sends an ephemeral response message
func threadRespond(event *events.ApplicationCommandInteractionCreate, content string) {
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
		LogThread(MsgThreadRespondError, err)
	}
}

// handleThread routes thread subcommands to their respective handlers
func handleThread(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	subCmd := data.SubCommandName
	if subCmd == nil {
		return
	}

	guildID := event.GuildID()
	if guildID == nil {
		threadRespond(event, MsgThreadGuildOnly)
		return
	}

	ctx, cancel := context.WithTimeout(AppContext, 2*time.Minute)
	defer cancel()

	settings, err := GetGuildSettings(ctx, *guildID)
	if err != nil {
		threadRespond(event, fmt.Sprintf(MsgThreadMutationFail, err))
		return
	}
	dir := guildDirectory(ctx, event.Client(), settings)
	if dir == nil {
		threadRespond(event, MsgThreadNoDirectory)
		return
	}

	switch *subCmd {
	case "add":
		handleThreadAdd(ctx, event, data, dir)
	case "remove":
		handleThreadRemove(ctx, event, data, dir)
	case "stats":
		handleThreadStats(ctx, event, dir)
	}
}

func handleThreadAdd(ctx context.Context, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData, dir *Directory) {
	ch, ok := data.OptChannel("thread")
	if !ok {
		return
	}

	added, err := dir.Add(ctx, ch.ID)
	if err != nil {
		threadRespond(event, describeMutationError(err))
		return
	}
	if !added {
		threadRespond(event, fmt.Sprintf(MsgThreadAlreadyListed, ch.ID))
		return
	}
	threadRespond(event, fmt.Sprintf(MsgThreadAdded, ch.ID))
}

func handleThreadRemove(ctx context.Context, event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData, dir *Directory) {
	ch, ok := data.OptChannel("thread")
	if !ok {
		return
	}

	removed, err := dir.Remove(ctx, ch.ID)
	if err != nil {
		threadRespond(event, describeMutationError(err))
		return
	}
	if !removed {
		threadRespond(event, fmt.Sprintf(MsgThreadNotListed, ch.ID))
		return
	}
	threadRespond(event, fmt.Sprintf(MsgThreadRemoved, ch.ID))
}

func handleThreadStats(ctx context.Context, event *events.ApplicationCommandInteractionCreate, dir *Directory) {
	items, err := dir.Items(ctx)
	if err != nil {
		threadRespond(event, fmt.Sprintf(MsgThreadStatsFetchFail, err))
		return
	}
	if len(items) == 0 {
		threadRespond(event, MsgThreadStatsHeader+"\n\n"+MsgThreadStatsEmpty)
		return
	}

	var sb strings.Builder
	sb.WriteString(MsgThreadStatsHeader)
	sb.WriteString(fmt.Sprintf("\n\n**Tracked threads:** `%d`\n", len(items)))

	groups, err := groupByParent(items, dir.Resolve)
	if err == nil {
		for _, g := range groups {
			sb.WriteString(fmt.Sprintf("<#%s>: `%d`\n", g.parent, len(g.items)))
		}
	}
	threadRespond(event, sb.String())
}

// describeMutationError turns a directory error into a user-facing line.
func describeMutationError(err error) string {
	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return fmt.Sprintf("Could not resolve <#%s>; the directory was left untouched.", resErr.ID)
	}
	var sizeErr *SizeExceededError
	if errors.As(err, &sizeErr) {
		return fmt.Sprintf("The directory is full (%d/%d characters).", sizeErr.Size, sizeErr.Budget)
	}
	var writeErr *WriteIndeterminateError
	if errors.As(err, &writeErr) {
		return "The directory write failed mid-flight. Please retry."
	}
	if errors.Is(err, ErrDocumentNotFound) {
		return MsgThreadNoDirectory
	}
	return fmt.Sprintf(MsgThreadMutationFail, err)
}

// ===========================
// Bell Marker
// ===========================

// handleBell routes bell subcommands to their respective handlers
func handleBell(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	subCmd := data.SubCommandName
	if subCmd == nil {
		return
	}

	ctx, cancel := context.WithTimeout(AppContext, 30*time.Second)
	defer cancel()

	threadID := event.Channel().ID()
	if ch, ok := data.OptChannel("thread"); ok {
		threadID = ch.ID
	}

	channel, err := event.Client().Rest.GetChannel(threadID, rest.WithCtx(ctx))
	if err != nil {
		threadRespond(event, fmt.Sprintf(MsgBellRenameFail, err))
		return
	}
	thread, ok := channel.(discord.GuildThread)
	if !ok {
		threadRespond(event, MsgThreadNotAThread)
		return
	}

	name := thread.Name()
	hasBell := strings.HasPrefix(name, bellPrefix)

	switch *subCmd {
	case "add":
		if hasBell {
			threadRespond(event, fmt.Sprintf(MsgBellAlready, threadID))
			return
		}
		name = bellPrefix + name
	case "remove":
		if !hasBell {
			threadRespond(event, fmt.Sprintf(MsgBellMissing, threadID))
			return
		}
		name = strings.TrimPrefix(name, bellPrefix)
	default:
		return
	}

	if _, err := event.Client().Rest.UpdateChannel(threadID, discord.GuildThreadUpdate{
		Name: &name,
	}, rest.WithCtx(ctx)); err != nil {
		threadRespond(event, fmt.Sprintf(MsgBellRenameFail, err))
		return
	}

	if *subCmd == "add" {
		threadRespond(event, fmt.Sprintf(MsgBellAdded, threadID))
	} else {
		threadRespond(event, fmt.Sprintf(MsgBellRemoved, threadID))
	}
}

// ===========================
// Directory Janitor Daemon
// ===========================

var directoryJanitorRunning int32

const janitorInterval = time.Hour

// StartDirectoryJanitor starts the daemon that drops deleted threads from
// every configured directory.
func StartDirectoryJanitor(ctx context.Context, client *bot.Client) (bool, func(), func()) {
	if !atomic.CompareAndSwapInt32(&directoryJanitorRunning, 0, 1) {
		return false, nil, nil
	}

	return true, func() {
			ticker := time.NewTicker(janitorInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					sweepDirectories(ctx, client)
				case <-ctx.Done():
					return
				}
			}
		}, func() {
			LogJanitor("Shutting down Directory Janitor...")
		}
}

// sweepDirectories re-resolves every tracked thread and removes the ones the
// platform no longer knows.
func sweepDirectories(parentCtx context.Context, client *bot.Client) {
	ctx, cancel := context.WithTimeout(parentCtx, 5*time.Minute)
	defer cancel()

	configured, err := ListConfiguredGuilds(ctx)
	if err != nil {
		LogJanitor("Failed to list configured guilds: %v", err)
		return
	}

	for _, settings := range configured {
		dir := guildDirectory(ctx, client, settings)
		if dir == nil {
			continue
		}
		sweepDirectory(ctx, dir, settings.GuildID)
	}
}

// sweepDirectory drops the entries the platform confirms deleted. Any other
// resolver failure leaves the entry in place since the document is the only
// record of it.
func sweepDirectory(ctx context.Context, dir *Directory, guildID snowflake.ID) {
	items, err := dir.Items(ctx)
	if err != nil {
		LogJanitor("Failed to read directory for guild %s: %v", guildID, err)
		return
	}

	for _, id := range items {
		_, err := dir.Resolve(id)
		if err == nil {
			continue
		}
		if !isUnknownChannel(err) {
			LogJanitor("Keeping thread %s, resolve failed: %v", id, err)
			continue
		}
		// Remove tolerates further unresolvable siblings.
		if _, err := dir.Remove(ctx, id); err != nil {
			LogJanitor("Failed to drop dead thread %s: %v", id, err)
			continue
		}
		LogJanitor("Dropped dead thread %s from guild %s", id, guildID)
	}
}
