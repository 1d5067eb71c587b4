package policy

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tipbot/tipfilter/internal/chat"
	"github.com/tipbot/tipfilter/internal/config"
	"github.com/tipbot/tipfilter/internal/registry"
)

const watchCooldown = time.Minute

// WatchRecorder persists watch records so they survive a restart.
type WatchRecorder interface {
	SaveWatch(ctx context.Context, kind string, uid int64, until time.Time) error
}

// WatchEscalator puts users that get flagged repeatedly on a watch list.
type WatchEscalator struct {
	mu      sync.Mutex
	reg     *registry.State
	cfg     config.WatchConfig
	now     func() time.Time
	strikes *lru.LRU[int64, *strikeStats]
	rec     WatchRecorder

	// cooldown keeps a freshly watched user from collecting new strikes.
	cooldown *lru.LRU[int64, struct{}]
}

type strikeStats struct {
	count int
	first time.Time
}

// NewWatchEscalator builds an escalator. rec may be nil.
func NewWatchEscalator(reg *registry.State, cfg config.WatchConfig, rec WatchRecorder) *WatchEscalator {
	size := cfg.CacheSize
	if size <= 0 {
		size = 8192
	}
	return &WatchEscalator{
		reg:      reg,
		cfg:      cfg,
		rec:      rec,
		now:      time.Now,
		strikes:  lru.NewLRU[int64, *strikeStats](size, nil, cfg.StrikeWindow),
		cooldown: lru.NewLRU[int64, struct{}](size, nil, watchCooldown),
	}
}

// HandleRejection counts a strike against the sender of a flagged message.
func (w *WatchEscalator) HandleRejection(_ context.Context, msg *chat.Message, filterName string) {
	if !w.cfg.Enabled || slices.Contains(w.cfg.ExcludeFilters, filterName) {
		return
	}
	uid := msg.SenderID()
	if uid == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, onCooldown := w.cooldown.Get(uid); onCooldown {
		return
	}

	stats, ok := w.strikes.Get(uid)
	if !ok {
		stats = &strikeStats{first: w.now()}
	}
	stats.count++
	w.strikes.Add(uid, stats)

	if stats.count < w.cfg.MaxStrikes {
		return
	}

	until := w.now().Add(w.cfg.Duration)
	w.reg.Watch(w.cfg.Kind, uid, until.Unix())
	w.strikes.Remove(uid)
	w.cooldown.Add(uid, struct{}{})

	slog.Warn("Watching user for repeated flags",
		"user_id", uid,
		"kind", w.cfg.Kind,
		"strike_count", stats.count,
		"first_strike", stats.first,
		"until", until)

	if w.rec != nil {
		go w.record(uid, until)
	}
}

func (w *WatchEscalator) record(uid int64, until time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.rec.SaveWatch(ctx, w.cfg.Kind, uid, until); err != nil {
		slog.Error("Failed to persist watch record", "user_id", uid, "kind", w.cfg.Kind, "error", err)
	}
}
