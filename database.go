package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	"github.com/mattn/go-sqlite3"
)

// --- Phase 1: Configuration & Environment ---

type Config struct {
	Token            string
	GuildID          string
	DatabasePath     string
	OwnerIDs         []string
	ReportWebhookURL string
	Silent           bool
}

var GlobalConfig *Config

// LoadConfig initializes the configuration from environment variables.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("DISCORD_TOKEN")
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		folder := "."
		if info, err := os.Stat("data"); err == nil && info.IsDir() {
			folder = "./data"
		}
		dbPath = filepath.Join(folder, GetProjectName()+".db")
	}

	silent, _ := strconv.ParseBool(os.Getenv("SILENT"))

	ownerIDsStr := os.Getenv("OWNER_IDS")
	var ownerIDs []string
	if ownerIDsStr != "" {
		ownerIDs = strings.Split(ownerIDsStr, ",")
		for i := range ownerIDs {
			ownerIDs[i] = strings.TrimSpace(ownerIDs[i])
		}
	}

	cfg := &Config{
		Token:            token,
		GuildID:          os.Getenv("GUILD_ID"),
		DatabasePath:     dbPath,
		OwnerIDs:         ownerIDs,
		ReportWebhookURL: os.Getenv("REPORT_WEBHOOK_URL"),
		Silent:           silent,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Silent {
		SetSilentMode(true)
	}

	GlobalConfig = cfg
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return fmt.Errorf("invalid GUILD_ID: must be a valid Snowflake")
	}
	if c.ReportWebhookURL != "" && !strings.Contains(c.ReportWebhookURL, "/webhooks/") {
		return fmt.Errorf("invalid REPORT_WEBHOOK_URL: must be a Discord webhook URL")
	}
	return nil
}

func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "bot"
	if err == nil {
		projectName = filepath.Base(exePath)
		projectName = strings.TrimSuffix(projectName, ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") {
			if modData, err := os.ReadFile("go.mod"); err == nil {
				lines := strings.Split(string(modData), "\n")
				if len(lines) > 0 && strings.HasPrefix(lines[0], "module ") {
					parts := strings.Split(lines[0], "/")
					projectName = strings.TrimSpace(parts[len(parts)-1])
				}
			}
		}
	}
	return projectName
}

// --- Phase 2: Database Connection & Lifecycle ---

var DB *sql.DB

func InitDatabase(ctx context.Context, dataSourceName string) error {
	// Explicitly reference sqlite3 driver to avoid blank identifier
	// The driver registers itself via its init() function
	_ = sqlite3.SQLiteDriver{}

	var err error
	DB, err = sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return err
	}

	DB.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := DB.ExecContext(initCtx, p); err != nil {
			return fmt.Errorf(MsgDatabasePragmaError, p, err)
		}
	}

	tx, err := DB.BeginTx(initCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS guild_settings (
			guild_id TEXT PRIMARY KEY,
			ping_role_id TEXT,
			directory_channel_id TEXT,
			directory_message_id TEXT,
			directory_style TEXT DEFAULT 'content',
			keep_header INTEGER DEFAULT 1,
			blocked_parents TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tags (
			name TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			return fmt.Errorf(MsgDatabaseTableError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	migrations := []string{
		"ALTER TABLE guild_settings ADD COLUMN keep_header INTEGER DEFAULT 1",
		"ALTER TABLE guild_settings ADD COLUMN blocked_parents TEXT",
	}

	for _, m := range migrations {
		if _, err := DB.ExecContext(initCtx, m); err != nil {
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
		}
	}

	if err := SeedDefaultTags(initCtx); err != nil {
		return err
	}

	LogDatabase(MsgDatabaseInitSuccess)
	return nil
}

func CloseDatabase() {
	if DB != nil {
		DB.Close()
	}
}

// --- Phase 3: Infrastructure & Bot Persistence ---

// BotConfig helpers are used by the loader for mode tracking and state.
func GetBotConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := DB.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func SetBotConfig(ctx context.Context, key, value string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO bot_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// --- Phase 4: Guild Settings ---

type GuildSettings struct {
	GuildID            snowflake.ID
	PingRoleID         snowflake.ID
	DirectoryChannelID snowflake.ID
	DirectoryMessageID snowflake.ID
	DirectoryStyle     DirectoryStyle
	KeepHeader         bool
	BlockedParents     []snowflake.ID
}

// HasDirectory reports whether the guild has a directory message configured.
func (s *GuildSettings) HasDirectory() bool {
	return s.DirectoryChannelID != 0 && s.DirectoryMessageID != 0
}

func (s *GuildSettings) IsParentBlocked(parentID snowflake.ID) bool {
	for _, id := range s.BlockedParents {
		if id == parentID {
			return true
		}
	}
	return false
}

func GetGuildSettings(ctx context.Context, guildID snowflake.ID) (*GuildSettings, error) {
	var pingRole, dirChannel, dirMessage, style, blocked sql.NullString
	var keepHeader sql.NullInt64
	err := DB.QueryRowContext(ctx, `
		SELECT ping_role_id, directory_channel_id, directory_message_id, directory_style, keep_header, blocked_parents
		FROM guild_settings WHERE guild_id = ?
	`, guildID.String()).Scan(&pingRole, &dirChannel, &dirMessage, &style, &keepHeader, &blocked)
	if err == sql.ErrNoRows {
		return &GuildSettings{GuildID: guildID, DirectoryStyle: StyleContent, KeepHeader: true}, nil
	}
	if err != nil {
		return nil, err
	}

	settings := &GuildSettings{
		GuildID:        guildID,
		DirectoryStyle: StyleContent,
		KeepHeader:     true,
	}
	if pingRole.Valid && pingRole.String != "" {
		settings.PingRoleID, _ = snowflake.Parse(pingRole.String)
	}
	if dirChannel.Valid && dirChannel.String != "" {
		settings.DirectoryChannelID, _ = snowflake.Parse(dirChannel.String)
	}
	if dirMessage.Valid && dirMessage.String != "" {
		settings.DirectoryMessageID, _ = snowflake.Parse(dirMessage.String)
	}
	if style.Valid && style.String != "" {
		settings.DirectoryStyle = ParseDirectoryStyle(style.String)
	}
	if keepHeader.Valid {
		settings.KeepHeader = keepHeader.Int64 != 0
	}
	if blocked.Valid && blocked.String != "" {
		for _, part := range strings.Split(blocked.String, ",") {
			if id, perr := snowflake.Parse(strings.TrimSpace(part)); perr == nil {
				settings.BlockedParents = append(settings.BlockedParents, id)
			}
		}
	}
	return settings, nil
}

func SetGuildSettings(ctx context.Context, s *GuildSettings) error {
	keepHeader := 0
	if s.KeepHeader {
		keepHeader = 1
	}
	blocked := make([]string, 0, len(s.BlockedParents))
	for _, id := range s.BlockedParents {
		blocked = append(blocked, id.String())
	}
	_, err := DB.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, ping_role_id, directory_channel_id, directory_message_id, directory_style, keep_header, blocked_parents)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			ping_role_id = excluded.ping_role_id,
			directory_channel_id = excluded.directory_channel_id,
			directory_message_id = excluded.directory_message_id,
			directory_style = excluded.directory_style,
			keep_header = excluded.keep_header,
			blocked_parents = excluded.blocked_parents,
			updated_at = CURRENT_TIMESTAMP
	`, s.GuildID.String(), idOrEmpty(s.PingRoleID), idOrEmpty(s.DirectoryChannelID), idOrEmpty(s.DirectoryMessageID),
		s.DirectoryStyle.String(), keepHeader, strings.Join(blocked, ","))
	return err
}

// ListConfiguredGuilds returns the settings of every guild that has a
// directory message configured.
func ListConfiguredGuilds(ctx context.Context) ([]*GuildSettings, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT guild_id FROM guild_settings
		WHERE directory_channel_id != '' AND directory_message_id != ''
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guildIDs []snowflake.ID
	for rows.Next() {
		var gid string
		if err := rows.Scan(&gid); err != nil {
			return nil, err
		}
		id, perr := snowflake.Parse(gid)
		if perr != nil {
			continue
		}
		guildIDs = append(guildIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var configured []*GuildSettings
	for _, id := range guildIDs {
		settings, err := GetGuildSettings(ctx, id)
		if err != nil {
			return nil, err
		}
		configured = append(configured, settings)
	}
	return configured, nil
}

func idOrEmpty(id snowflake.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}

// --- Phase 5: Tags ---

type Tag struct {
	Name    string
	Content string
}

var defaultTags = map[string]string{
	"rules":   "Be kind, stay on topic, and keep threads tidy.",
	"welcome": "Welcome aboard! Check the pinned thread directory for ongoing discussions.",
}

func SeedDefaultTags(ctx context.Context) error {
	for name, content := range defaultTags {
		_, err := DB.ExecContext(ctx, `
			INSERT INTO tags (name, content) VALUES (?, ?)
			ON CONFLICT(name) DO NOTHING
		`, name, content)
		if err != nil {
			return fmt.Errorf("failed to seed tag %s: %w", name, err)
		}
	}
	return nil
}

func GetTag(ctx context.Context, name string) (*Tag, error) {
	t := &Tag{}
	err := DB.QueryRowContext(ctx, "SELECT name, content FROM tags WHERE name = ?", strings.ToLower(name)).Scan(&t.Name, &t.Content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func ListTags(ctx context.Context) ([]*Tag, error) {
	rows, err := DB.QueryContext(ctx, "SELECT name, content FROM tags ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		t := &Tag{}
		if err := rows.Scan(&t.Name, &t.Content); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func SetTag(ctx context.Context, name, content string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO tags (name, content) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET content = excluded.content, updated_at = CURRENT_TIMESTAMP
	`, strings.ToLower(name), content)
	return err
}

func RemoveTag(ctx context.Context, name string) (bool, error) {
	res, err := DB.ExecContext(ctx, "DELETE FROM tags WHERE name = ?", strings.ToLower(name))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}
