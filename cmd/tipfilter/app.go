package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tipbot/tipfilter/internal/config"
	"github.com/tipbot/tipfilter/internal/metrics"
	"github.com/tipbot/tipfilter/internal/policy"
	"github.com/tipbot/tipfilter/internal/registry"
	"github.com/tipbot/tipfilter/internal/rules"
	"github.com/tipbot/tipfilter/internal/store"
)

// app wires the registry, the matcher and the pipeline around one store.
type app struct {
	reg      *registry.State
	matcher  *rules.Matcher
	engine   *policy.Engine
	pipeline *policy.Pipeline
	saver    *store.Saver

	// reloadMu serializes config reloads.
	reloadMu sync.Mutex
}

func engineOptions(cfg *config.Config) policy.Options {
	return policy.Options{
		Emoji: policy.EmojiOptions{
			Set:      cfg.Emoji.Set,
			Protect:  cfg.Emoji.Protect,
			AdSingle: cfg.Emoji.AdSingle,
			AdTotal:  cfg.Emoji.AdTotal,
			Many:     cfg.Emoji.Many,
			WBSingle: cfg.Emoji.WBSingle,
			WBTotal:  cfg.Emoji.WBTotal,
		},
		HighScoreThreshold: cfg.Score.HighThreshold,
	}
}

func newApp(ctx context.Context, cfg *config.Config, db store.Store, collector *metrics.Collector) (*app, error) {
	groups, err := cfg.ParseGroups()
	if err != nil {
		return nil, err
	}

	re, err := rules.NewRegex(cfg.Regex.Timeout, cfg.Regex.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create regex matcher: %w", err)
	}

	ruleStore := rules.NewStore()
	saver := store.NewSaver(db, ruleStore, cfg.Save)

	var observer rules.Observer
	var mc policy.MetricsCollector
	if collector != nil {
		observer = collector
		mc = collector
	}
	matcher := rules.NewMatcher(ruleStore, rules.NewTimeoutSet(), re, saver, observer)

	reg := registry.New()
	applyConfig(reg, cfg, groups)

	opts := store.LoadOptions{
		ConfiguredRules:    cfg.RuleSets(),
		ConfiguredKeywords: make(map[int64]bool),
	}
	for _, g := range groups {
		opts.Groups = append(opts.Groups, g.ID)
		if len(g.Keywords) > 0 {
			opts.ConfiguredKeywords[g.ID] = true
		}
	}
	if err := store.LoadAll(ctx, db, matcher, reg, opts); err != nil {
		return nil, fmt.Errorf("failed to load persisted state: %w", err)
	}
	reg.SetKeywordsHook(saver.SaveKeywords)

	engine, err := policy.NewEngine(reg, matcher, engineOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	escalator := policy.NewWatchEscalator(reg, cfg.Watch, db)
	pipeline := policy.NewPipeline(engine, policy.DefaultFilters(engine),
		[]policy.RejectionHandler{escalator}, mc, cfg.Log.RejectionLevels)

	return &app{
		reg:      reg,
		matcher:  matcher,
		engine:   engine,
		pipeline: pipeline,
		saver:    saver,
	}, nil
}

// applyConfig pushes identities, trust lists and group settings into the
// registry. Groups missing from groups are dropped.
func applyConfig(reg *registry.State, cfg *config.Config, groups []config.Group) {
	reg.SetSelf(cfg.Bot.SelfID)
	reg.SetNospamID(cfg.Bot.NospamID)
	reg.SetBots(cfg.Bot.BotIDs)
	reg.SetChannels(registry.Channels{
		Exchange:   cfg.Bot.ExchangeChannelID,
		Hide:       cfg.Bot.HideChannelID,
		TestGroup:  cfg.Bot.TestGroupID,
		ShouldHide: cfg.Bot.ShouldHide,
		AIO:        cfg.Bot.AIO,
	})

	reg.SetBad(cfg.Users.Bad)
	reg.SetWhite(cfg.Users.White)
	reg.ReplaceScores(cfg.UserScores())
	reg.SetIgnore(policy.IgnoreNospam, cfg.Ignore.Nospam)
	reg.SetIgnore(policy.IgnoreUser, cfg.Ignore.User)

	known := make(map[int64]bool, len(groups))
	for _, g := range groups {
		known[g.ID] = true
		reg.SetGroup(g.ID, g.Settings)
		reg.SetAdmins(g.ID, g.Admins)
		reg.SetTrusted(g.ID, g.Trusted)
		if len(g.Keywords) > 0 {
			reg.LoadKeywords(g.ID, g.Keywords)
		}
	}
	for _, gid := range reg.Groups() {
		if !known[gid] {
			reg.RemoveGroup(gid)
		}
	}
}

// reload applies a new configuration in place. Regex, storage, watch and
// metrics settings only take effect on restart.
func (a *app) reload(cfg *config.Config) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	groups, err := cfg.ParseGroups()
	if err != nil {
		slog.Error("Failed to parse groups on reload, keeping current state", "error", err)
		return
	}
	if err := a.engine.UpdateOptions(engineOptions(cfg)); err != nil {
		slog.Error("Failed to apply engine options on reload, keeping current state", "error", err)
		return
	}

	applyConfig(a.reg, cfg, groups)
	for cat, patterns := range cfg.RuleSets() {
		a.matcher.Store().Replace(cat, patterns)
		a.saver.Save(cat.SaveName())
	}
	a.pipeline.SetRejectionLevels(cfg.Log.RejectionLevels)

	slog.Info("Configuration applied", "groups", len(groups))
}

// handle applies one input line and returns the decision for messages.
func (a *app) handle(ctx context.Context, in *Input, dryRun bool) (*policy.Decision, error) {
	switch in.Type {
	case "", inputMessage:
		if in.Message == nil {
			return nil, fmt.Errorf("message input without message")
		}
		d, err := a.pipeline.ProcessMessage(ctx, in.Message, dryRun)
		return &d, err
	case inputDeclare:
		a.reg.Declare(in.ChatID, in.MessageID)
		return nil, nil
	case inputKeywordSet:
		if in.Keyword == nil {
			return nil, fmt.Errorf("keyword input without keyword")
		}
		kw, err := registry.NewKeyword(in.Keyword.Key, in.Keyword.Words, in.Keyword.Modes, in.Keyword.Target,
			in.Keyword.Actions, in.Keyword.Reply, in.Keyword.Destruct)
		if err != nil {
			return nil, err
		}
		a.reg.SetKeyword(in.ChatID, kw)
		return nil, nil
	case inputKeywordRemove:
		if in.Keyword == nil {
			return nil, fmt.Errorf("keyword input without keyword")
		}
		a.reg.RemoveKeyword(in.ChatID, in.Keyword.Key)
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown input type %q", in.Type)
	}
}

func (a *app) close() error {
	return a.pipeline.Close()
}
