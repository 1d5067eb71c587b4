package policy

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/tipbot/tipfilter/internal/chat"
	"github.com/tipbot/tipfilter/internal/config"
)

type Pipeline struct {
	engine            *Engine
	filters           []Filter
	rejectionHandlers []RejectionHandler
	collector         MetricsCollector

	mu              sync.RWMutex
	rejectionLevels map[string]config.LogLevel

	wg sync.WaitGroup
}

func NewPipeline(
	engine *Engine,
	filters []Filter,
	handlers []RejectionHandler,
	collector MetricsCollector,
	rejectionLevels map[string]config.LogLevel,
) *Pipeline {
	return &Pipeline{
		engine:            engine,
		filters:           filters,
		rejectionHandlers: handlers,
		collector:         collector,
		rejectionLevels:   rejectionLevels,
	}
}

// SetRejectionLevels replaces the per-filter log levels on reload.
func (p *Pipeline) SetRejectionLevels(levels map[string]config.LogLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectionLevels = levels
}

func (p *Pipeline) rejectionLevel(filter string) slog.Level {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if level, ok := p.rejectionLevels[filter]; ok {
		return level.ToSlogLevel()
	}
	return slog.LevelWarn
}

// ProcessMessage runs the filters in order and returns the first flag, or
// a pass. In dry-run mode flags are logged and turned into passes.
func (p *Pipeline) ProcessMessage(ctx context.Context, msg *chat.Message, dryRun bool) (decision Decision, err error) {
	p.wg.Add(1)
	defer p.wg.Done()

	decision = Decision{
		ChatID:    msg.ChatID(),
		MessageID: msgID(msg),
		UserID:    msg.SenderID(),
		Action:    ActionPass,
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic recovered in filter pipeline",
				"panic", r, "chat_id", decision.ChatID, "message_id", decision.MessageID, "stack", string(debug.Stack()),
			)
			decision.Action = ActionPass
			decision.Filter = ""
			decision.Reason = "internal: an unexpected error occurred"
			decision.Keyword = nil
			err = nil
		}
	}()

	if !p.engine.IsAuthorizedGroup(msg) {
		decision.Reason = "not_authorized_group"
		return decision, nil
	}
	if !p.engine.IsFromUser(msg) {
		decision.Reason = "not_from_user"
		return decision, nil
	}

	for _, filter := range p.filters {
		res, filterErr := filter.Match(ctx, msg)
		if filterErr != nil {
			slog.Error("Filter execution failed", "error", filterErr, "filter_name", res.Filter, "chat_id", decision.ChatID)
			decision.Filter = res.Filter
			decision.Reason = "internal: error in filter " + res.Filter
			return decision, filterErr
		}

		if p.collector != nil {
			p.collector.Report(res)
		}

		if res.Allowed {
			if res.Final {
				decision.Filter = res.Filter
				decision.Reason = res.Reason
				return decision, nil
			}
			continue
		}

		logAttrs := []slog.Attr{
			slog.String("filter_name", res.Filter),
			slog.Int64("chat_id", decision.ChatID),
			slog.Int("message_id", decision.MessageID),
			slog.Int64("user_id", decision.UserID),
			slog.String("reason", res.Reason),
		}
		slog.LogAttrs(ctx, p.rejectionLevel(res.Filter), "Message flagged by filter", logAttrs...)

		decision.Filter = res.Filter
		decision.Reason = res.Reason
		decision.Keyword = res.Keyword

		if dryRun {
			slog.LogAttrs(ctx, slog.LevelInfo, "Dry-run: message would be flagged", logAttrs...)
			return decision, nil
		}

		for _, handler := range p.rejectionHandlers {
			handler.HandleRejection(ctx, msg, res.Filter)
		}

		decision.Action = ActionFlag
		return decision, nil
	}

	slog.Debug("Message passed all filters", "chat_id", decision.ChatID, "message_id", decision.MessageID)
	return decision, nil
}

// Close waits for in-flight messages and closes filters that hold resources.
func (p *Pipeline) Close() error {
	p.wg.Wait()

	for _, filter := range p.filters {
		if closer, ok := filter.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				slog.Error("Failed to close a filter component", "filter", filter, "error", err)
			}
		}
	}
	return nil
}

func msgID(msg *chat.Message) int {
	if msg == nil {
		return 0
	}
	return msg.ID
}
