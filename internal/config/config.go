package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tipbot/tipfilter/internal/registry"
	"github.com/tipbot/tipfilter/internal/rules"
)

type Config struct {
	Log     LogConfig              `toml:"log"`
	DB      DBConfig               `toml:"database"`
	Metrics MetricsConfig          `toml:"metrics"`
	Bot     BotConfig              `toml:"bot"`
	Regex   RegexConfig            `toml:"regex"`
	Emoji   EmojiConfig            `toml:"emoji"`
	Score   ScoreConfig            `toml:"score"`
	Save    SaveConfig             `toml:"save"`
	Watch   WatchConfig            `toml:"watch"`
	Users   UsersConfig            `toml:"users"`
	Ignore  IgnoreConfig           `toml:"ignore"`
	Rules   map[string][]string    `toml:"rules"`
	Groups  map[string]GroupConfig `toml:"groups"`
}

type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

func (l *LogLevel) UnmarshalText(text []byte) error {
	v := string(text)
	switch LogLevel(v) {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		*l = LogLevel(v)
		return nil
	default:
		return fmt.Errorf("invalid log.level: %q (must be debug, info, warn, error)", v)
	}
}

func (l LogLevel) String() string { return string(l) }

func (l LogLevel) ToSlogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type LogConfig struct {
	Level LogLevel `toml:"level"`

	// RejectionLevels overrides the log level of flag decisions per filter.
	RejectionLevels map[string]LogLevel `toml:"rejection_levels"`
}

type DBConfig struct {
	Path string `toml:"path"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

type BotConfig struct {
	SelfID            int64   `toml:"self_id"`
	NospamID          int64   `toml:"nospam_id"`
	BotIDs            []int64 `toml:"bot_ids"`
	ExchangeChannelID int64   `toml:"exchange_channel_id"`
	HideChannelID     int64   `toml:"hide_channel_id"`
	TestGroupID       int64   `toml:"test_group_id"`
	ShouldHide        bool    `toml:"should_hide"`
	AIO               bool    `toml:"aio"`
}

type RegexConfig struct {
	Timeout   time.Duration `toml:"timeout"`
	CacheSize int           `toml:"cache_size"`
}

type EmojiConfig struct {
	Set      []string `toml:"set"`
	Protect  []string `toml:"protect"`
	AdSingle int      `toml:"ad_single"`
	AdTotal  int      `toml:"ad_total"`
	Many     int      `toml:"many"`
	WBSingle int      `toml:"wb_single"`
	WBTotal  int      `toml:"wb_total"`
}

type ScoreConfig struct {
	HighThreshold float64 `toml:"high_threshold"`
}

type SaveConfig struct {
	Debounce time.Duration `toml:"debounce"`
	Rate     float64       `toml:"rate"`
	Burst    int           `toml:"burst"`
}

// WatchConfig drives the escalation of repeatedly flagged users onto a
// watch list.
type WatchConfig struct {
	Enabled        bool          `toml:"enabled"`
	Kind           string        `toml:"kind"`
	MaxStrikes     int           `toml:"max_strikes"`
	StrikeWindow   time.Duration `toml:"strike_window"`
	Duration       time.Duration `toml:"duration"`
	CacheSize      int           `toml:"cache_size"`
	ExcludeFilters []string      `toml:"exclude_filters_from_strikes"`
}

type UsersConfig struct {
	Bad    []int64                       `toml:"bad"`
	White  []int64                       `toml:"white"`
	Scores map[string]map[string]float64 `toml:"scores"`
}

type IgnoreConfig struct {
	Nospam []int64 `toml:"nospam"`
	User   []int64 `toml:"user"`
}

type GroupConfig struct {
	Keyword  *bool           `toml:"keyword"`
	Equal    bool            `toml:"equal"`
	White    bool            `toml:"white"`
	RM       *bool           `toml:"rm"`
	RMReply  string          `toml:"rm_reply"`
	Admins   []int64         `toml:"admins"`
	Trusted  []int64         `toml:"trusted"`
	Keywords []KeywordConfig `toml:"keywords"`
}

type KeywordConfig struct {
	Key      string          `toml:"key"`
	Words    []string        `toml:"words"`
	Modes    []string        `toml:"modes"`
	Target   registry.Target `toml:"target"`
	Actions  []string        `toml:"actions"`
	Reply    string          `toml:"reply"`
	Destruct int             `toml:"destruct"`
}

// Group is a parsed [groups] entry.
type Group struct {
	ID       int64
	Settings registry.GroupConfig
	Admins   []int64
	Trusted  []int64
	Keywords []registry.Keyword
}

func defaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: InfoLevel},
		DB: DBConfig{
			Path: "./tipfilter-db",
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9101",
		},
		Regex: RegexConfig{
			Timeout:   rules.DefaultTimeout,
			CacheSize: 4096,
		},
		Emoji: EmojiConfig{
			Set:      defaultEmojiSet,
			AdSingle: 15,
			AdTotal:  30,
			Many:     15,
			WBSingle: 10,
			WBTotal:  15,
		},
		Score: ScoreConfig{HighThreshold: 3.0},
		Save: SaveConfig{
			Debounce: 2 * time.Second,
			Rate:     1,
			Burst:    4,
		},
		Watch: WatchConfig{
			Kind:         "delete",
			MaxStrikes:   3,
			StrikeWindow: 10 * time.Minute,
			Duration:     24 * time.Hour,
			CacheSize:    8192,
		},
	}
}

var defaultEmojiSet = []string{
	"😀", "😁", "😂", "🤣", "😍", "😘", "😎", "🔥", "💯", "💰", "💵", "💸", "💎", "🎁", "🎉",
	"✅", "❗", "❤️", "❤", "👉", "👈", "👇", "👆", "⭐", "🌟", "✨", "📈", "🚀", "📣", "🔞",
}

func (c *Config) validate() error {
	// --- [regex] ---
	if c.Regex.Timeout <= 0 {
		return errors.New("regex.timeout must be a positive duration (e.g., '5s')")
	}
	if c.Regex.CacheSize <= 0 {
		return errors.New("regex.cache_size must be positive")
	}

	// --- [emoji] ---
	e := c.Emoji
	if e.AdSingle <= 0 || e.AdTotal <= 0 || e.Many <= 0 || e.WBSingle <= 0 || e.WBTotal <= 0 {
		return errors.New("emoji: ad_single, ad_total, many, wb_single and wb_total must be > 0")
	}

	// --- [score] ---
	if c.Score.HighThreshold < 0 {
		return errors.New("score.high_threshold must not be negative")
	}

	// --- [save] ---
	if c.Save.Debounce < 0 {
		return errors.New("save.debounce must not be negative")
	}
	if c.Save.Rate <= 0 || c.Save.Burst <= 0 {
		return errors.New("save: rate and burst must be > 0")
	}

	// --- [watch] ---
	w := c.Watch
	if w.Enabled {
		if w.Kind == "" {
			return errors.New("watch.kind must be set when enabled")
		}
		if w.MaxStrikes <= 0 {
			return errors.New("watch.max_strikes must be > 0")
		}
		if w.StrikeWindow <= 0 {
			return errors.New("watch.strike_window must be a positive duration")
		}
		if w.Duration <= 0 {
			return errors.New("watch.duration must be a positive duration")
		}
		if w.CacheSize <= 0 {
			return errors.New("watch.cache_size must be > 0")
		}
	}

	// --- [metrics] ---
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.New("metrics.listen must be set when metrics are enabled")
	}

	// --- [rules] ---
	for name := range c.Rules {
		if _, err := rules.ParseCategory(name); err != nil {
			return fmt.Errorf("rules: %w", err)
		}
	}

	// --- [users] ---
	for uid := range c.Users.Scores {
		if _, err := strconv.ParseInt(uid, 10, 64); err != nil {
			return fmt.Errorf("users.scores: invalid user id %q", uid)
		}
	}

	// --- [groups] ---
	if _, err := c.ParseGroups(); err != nil {
		return err
	}

	return nil
}

// RuleSets returns the configured pattern lists by category.
func (c *Config) RuleSets() map[rules.Category][]string {
	out := make(map[rules.Category][]string, len(c.Rules))
	for name, patterns := range c.Rules {
		cat, err := rules.ParseCategory(name)
		if err != nil {
			continue
		}
		out[cat] = patterns
	}
	return out
}

// UserScores returns the configured score maps keyed by user id.
func (c *Config) UserScores() map[int64]map[string]float64 {
	out := make(map[int64]map[string]float64, len(c.Users.Scores))
	for id, scores := range c.Users.Scores {
		uid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		out[uid] = scores
	}
	return out
}

// ParseGroups converts the [groups] tables, keyed by chat id.
func (c *Config) ParseGroups() ([]Group, error) {
	groups := make([]Group, 0, len(c.Groups))
	for id, g := range c.Groups {
		gid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("groups: invalid group id %q", id)
		}
		if gid >= 0 {
			return nil, fmt.Errorf("groups[%s]: group ids must be negative", id)
		}

		settings := registry.GroupConfig{
			Keyword: true,
			Equal:   g.Equal,
			White:   g.White,
			RM:      true,
			RMReply: g.RMReply,
		}
		if g.Keyword != nil {
			settings.Keyword = *g.Keyword
		}
		if g.RM != nil {
			settings.RM = *g.RM
		}

		keywords := make([]registry.Keyword, 0, len(g.Keywords))
		for i, kc := range g.Keywords {
			modes, err := registry.ParseModes(kc.Modes)
			if err != nil {
				return nil, fmt.Errorf("groups[%s].keywords[%d] ('%s'): %w", id, i, kc.Key, err)
			}
			kw, err := registry.NewKeyword(kc.Key, kc.Words, modes, kc.Target, kc.Actions, kc.Reply, kc.Destruct)
			if err != nil {
				return nil, fmt.Errorf("groups[%s].keywords[%d]: %w", id, i, err)
			}
			keywords = append(keywords, kw)
		}

		groups = append(groups, Group{
			ID:       gid,
			Settings: settings,
			Admins:   g.Admins,
			Trusted:  g.Trusted,
			Keywords: keywords,
		})
	}
	return groups, nil
}

func Load(path string, useDefaults bool) (*Config, bool, error) {
	cfg := defaultConfig()
	defaultsUsed := false

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if useDefaults {
				defaultsUsed = true
				if err := cfg.validate(); err != nil {
					return nil, true, err
				}
				return cfg, defaultsUsed, nil
			}
			return nil, false, fmt.Errorf("config file not found at %s", path)
		}
		return nil, false, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, false, err
	}
	return cfg, defaultsUsed, nil
}
