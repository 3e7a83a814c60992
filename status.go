package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/gateway"
)

// ============================================================================
// Status Rotator Constants
// ============================================================================

const (
	MsgStatusUpdateFail = "Failed to update status: %v"
	MsgStatusRotated    = "Rotated to %q, next in %s"

	configKeyStatusVisible = "status_visible"
)

var (
	StartTime      = time.Now().UTC()
	statusList     []func(context.Context, *bot.Client) string
	lastStatusText string
	statusMu       sync.RWMutex
)

func init() {
	OnClientReady(func(ctx context.Context, client *bot.Client) {
		RegisterDaemon(LogStatus, func(ctx context.Context) (bool, func(), func()) { return StartStatusRotator(ctx, client) })
	})
}

// GetRotationInterval returns the status rotation interval
func GetRotationInterval() time.Duration {
	return time.Duration(15+rand.Intn(46)) * time.Second
}

// StartStatusRotator starts the status rotation daemon
func StartStatusRotator(ctx context.Context, client *bot.Client) (bool, func(), func()) {
	// Always start the daemon even if currently disabled, so it can be re-enabled at runtime
	statusList = []func(context.Context, *bot.Client) string{
		GetTrackedThreadsStatus,
		GetUptimeStatus,
		GetLatencyStatus,
	}

	return true, func() {
			next := GetRotationInterval()
			updateStatus(ctx, client, next)
			for {
				select {
				case <-time.After(next):
					next = GetRotationInterval()
					updateStatus(ctx, client, next)
				case <-ctx.Done():
					return
				}
			}
		}, func() { // Shutdown hook
			LogStatus("Shutting down Status Rotator...")
		}
}

// updateStatus updates the bot's status with the next status in rotation
func updateStatus(ctx context.Context, client *bot.Client, nextInterval time.Duration) {
	if client == nil {
		return
	}

	visibleStr, err := GetBotConfig(ctx, configKeyStatusVisible)
	if err != nil || visibleStr == "false" {
		client.SetPresence(ctx, gateway.WithOnlineStatus(discord.OnlineStatusOnline))
		return
	}

	var availableStatuses []string
	for _, gen := range statusList {
		if text := gen(ctx, client); text != "" {
			availableStatuses = append(availableStatuses, text)
		}
	}

	if len(availableStatuses) == 0 {
		availableStatuses = append(availableStatuses, GetUptimeStatus(ctx, client))
	}

	statusMu.RLock()
	last := lastStatusText
	statusMu.RUnlock()

	var finalChoices []string
	for _, s := range availableStatuses {
		if s != last {
			finalChoices = append(finalChoices, s)
		}
	}

	var selectedStatus string
	if len(finalChoices) > 0 {
		selectedStatus = finalChoices[rand.Intn(len(finalChoices))]
	} else {
		selectedStatus = availableStatuses[0]
	}

	statusMu.Lock()
	lastStatusText = selectedStatus
	statusMu.Unlock()

	err = client.SetPresence(ctx,
		gateway.WithOnlineStatus(discord.OnlineStatusOnline),
		gateway.WithWatchingActivity(selectedStatus),
	)

	if err != nil {
		LogStatus(MsgStatusUpdateFail, err)
	} else {
		LogStatus(MsgStatusRotated, selectedStatus, nextInterval)
	}
}

// GetTrackedThreadsStatus returns a status line with the total tracked threads
func GetTrackedThreadsStatus(ctx context.Context, client *bot.Client) string {
	configured, err := ListConfiguredGuilds(ctx)
	if err != nil {
		return ""
	}

	total := 0
	for _, settings := range configured {
		dir := guildDirectory(ctx, client, settings)
		if dir == nil {
			continue
		}
		items, err := dir.Items(ctx)
		if err != nil {
			continue
		}
		total += len(items)
	}
	if total == 0 {
		return ""
	}
	return fmt.Sprintf("%d threads", total)
}

// GetUptimeStatus returns a status string showing bot uptime
func GetUptimeStatus(ctx context.Context, client *bot.Client) string {
	uptime := time.Since(StartTime)
	return fmt.Sprintf("Uptime: %dh %dm %ds", int(uptime.Hours()), int(uptime.Minutes())%60, int(uptime.Seconds())%60)
}

// GetLatencyStatus returns a status string showing gateway latency
func GetLatencyStatus(ctx context.Context, client *bot.Client) string {
	ping := client.Gateway.Latency()
	if ping == 0 {
		return ""
	}
	return fmt.Sprintf("Ping: %dms", ping.Milliseconds())
}
