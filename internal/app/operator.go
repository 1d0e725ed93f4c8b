package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"bn-scalp-bot/internal/alerts"

	"go.uber.org/zap"
)

const operatorOffsetKey = "telegram:operator:last_update_id"

type operatorMeta struct {
	UpdateID int64
	UserID   int64
	Username string
	ChatID   int64
	Raw      string
}

type operatorAuditEvent struct {
	UpdateID     int64     `json:"update_id"`
	Time         time.Time `json:"time"`
	Action       string    `json:"action"`
	Command      string    `json:"command"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	ChatID       int64     `json:"chat_id"`
	PausedBefore bool      `json:"paused_before"`
	PausedAfter  bool      `json:"paused_after"`
}

func (a *App) startOperator(ctx context.Context, wg *sync.WaitGroup) {
	if a.cfg == nil || a.alerts == nil || a.log == nil {
		return
	}
	if !a.cfg.Telegram.OperatorEnabled {
		return
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(a.cfg.Telegram.ChatID), 10, 64)
	if err != nil {
		a.log.Warn("telegram operator disabled: invalid chat_id", zap.Error(err))
		return
	}
	pollInterval := a.cfg.Telegram.OperatorPollInterval
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	allowedUsers := make(map[int64]struct{}, len(a.cfg.Telegram.OperatorAllowedUserIDs))
	for _, id := range a.cfg.Telegram.OperatorAllowedUserIDs {
		allowedUsers[id] = struct{}{}
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.operatorLoop(ctx, chatID, allowedUsers, pollInterval)
	}()
}

func (a *App) operatorLoop(ctx context.Context, chatID int64, allowedUsers map[int64]struct{}, pollInterval time.Duration) {
	offset := a.loadOperatorOffset(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		updates, err := a.alerts.GetUpdates(ctx, offset, pollInterval)
		if err != nil {
			a.logOperatorError(err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}
		a.opsMu.Lock()
		if a.operatorWarned {
			a.log.Info("telegram operator recovered")
			a.operatorWarned = false
		}
		a.opsMu.Unlock()
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
				a.saveOperatorOffset(ctx, offset)
			}
			a.handleOperatorUpdate(ctx, upd, chatID, allowedUsers)
		}
	}
}

func (a *App) handleOperatorUpdate(ctx context.Context, upd alerts.Update, chatID int64, allowedUsers map[int64]struct{}) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	if msg.Chat == nil || msg.From == nil {
		return
	}
	if msg.Chat.ID != chatID {
		return
	}
	if len(allowedUsers) > 0 {
		if _, ok := allowedUsers[msg.From.ID]; !ok {
			return
		}
	}
	cmd, _, ok := parseOperatorCommand(msg.Text)
	if !ok {
		return
	}
	meta := operatorMeta{
		UpdateID: upd.UpdateID,
		UserID:   msg.From.ID,
		Username: msg.From.Username,
		ChatID:   msg.Chat.ID,
		Raw:      msg.Text,
	}
	resp, err := a.handleOperatorCommand(ctx, cmd, meta)
	if err != nil {
		resp = fmt.Sprintf("command failed: %v", err)
	}
	if resp == "" {
		return
	}
	if err := a.alerts.Send(ctx, resp); err != nil {
		a.log.Warn("operator response failed", zap.Error(err))
	}
}

func parseOperatorCommand(text string) (string, []string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", nil, false
	}
	if !strings.HasPrefix(trimmed, "/") {
		return "", nil, false
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", nil, false
	}
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	return cmd, fields[1:], true
}

func (a *App) handleOperatorCommand(ctx context.Context, cmd string, meta operatorMeta) (string, error) {
	switch cmd {
	case "status":
		return a.operatorStatus(ctx), nil
	case "pause":
		before := a.isPaused()
		after := a.setPaused(true)
		a.auditOperatorEvent(ctx, operatorAuditEvent{
			UpdateID:     meta.UpdateID,
			Time:         time.Now().UTC(),
			Action:       "pause",
			Command:      meta.Raw,
			UserID:       meta.UserID,
			Username:     meta.Username,
			ChatID:       meta.ChatID,
			PausedBefore: before,
			PausedAfter:  after,
		})
		if !before {
			return "trading paused", nil
		}
		return "trading already paused", nil
	case "resume":
		before := a.isPaused()
		after := a.setPaused(false)
		a.auditOperatorEvent(ctx, operatorAuditEvent{
			UpdateID:     meta.UpdateID,
			Time:         time.Now().UTC(),
			Action:       "resume",
			Command:      meta.Raw,
			UserID:       meta.UserID,
			Username:     meta.Username,
			ChatID:       meta.ChatID,
			PausedBefore: before,
			PausedAfter:  after,
		})
		if before {
			return "trading resumed", nil
		}
		return "trading already active", nil
	case "help":
		return operatorHelpText(), nil
	default:
		return operatorHelpText(), nil
	}
}

func (a *App) operatorStatus(ctx context.Context) string {
	sig, at := a.lastSignalSnapshot()
	lastSignal := "n/a"
	if !at.IsZero() {
		lastSignal = fmt.Sprintf("%s at %s", sig, at.UTC().Format(time.RFC3339))
	}
	lines := []string{
		fmt.Sprintf("symbol: %s", a.feed.Symbol()),
		fmt.Sprintf("strategy: %s", a.strategy.Name()),
		fmt.Sprintf("paused: %t", a.isPaused()),
		fmt.Sprintf("ready: %t", a.strategy.Ready()),
		fmt.Sprintf("last_signal: %s", lastSignal),
	}
	totals, err := a.positions.Totals(ctx)
	if err != nil {
		lines = append(lines, fmt.Sprintf("ledger: unavailable (%v)", err))
		return strings.Join(lines, "\n")
	}
	lines = append(lines,
		fmt.Sprintf("pending_orders: %d", totals.Pending),
		fmt.Sprintf("active_positions: %d", totals.Active),
		fmt.Sprintf("total_pnl: %.4f", totals.TotalPnL),
		fmt.Sprintf("today: %d trades, %d wins (%.0f%%), pnl %.4f",
			totals.TodayTrades, totals.TodayWins, totals.WinRate*100, totals.TodayPnL),
	)
	return strings.Join(lines, "\n")
}

func operatorHelpText() string {
	return strings.Join([]string{
		"commands:",
		"/status - current bot status",
		"/pause - pause new entries (exits keep running)",
		"/resume - resume new entries",
	}, "\n")
}

func (a *App) isPaused() bool {
	a.opsMu.RLock()
	defer a.opsMu.RUnlock()
	return a.paused
}

func (a *App) setPaused(paused bool) bool {
	a.opsMu.Lock()
	defer a.opsMu.Unlock()
	a.paused = paused
	return a.paused
}

func (a *App) logOperatorError(err error) {
	if a.log == nil {
		return
	}
	a.opsMu.Lock()
	defer a.opsMu.Unlock()
	if a.operatorWarned {
		return
	}
	a.operatorWarned = true
	a.log.Warn("telegram operator failed", zap.Error(err))
}

func (a *App) loadOperatorOffset(ctx context.Context) int64 {
	if a.store == nil {
		return 0
	}
	raw, ok, err := a.store.Get(ctx, operatorOffsetKey)
	if err != nil || !ok {
		return 0
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || val < 0 {
		return 0
	}
	return val
}

func (a *App) saveOperatorOffset(ctx context.Context, offset int64) {
	if a.store == nil {
		return
	}
	_ = a.store.Set(ctx, operatorOffsetKey, strconv.FormatInt(offset, 10))
}

func (a *App) auditOperatorEvent(ctx context.Context, event operatorAuditEvent) {
	if a.store == nil {
		return
	}
	key := fmt.Sprintf("ops:audit:%d:%d", time.Now().UTC().UnixNano(), event.UpdateID)
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = a.store.Set(ctx, key, string(payload))
}
