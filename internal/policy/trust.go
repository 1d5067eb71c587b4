package policy

import (
	"github.com/tipbot/tipfilter/internal/chat"
)

// IsClassC reports whether the sender is admin-equivalent in the message's
// group: a group admin, a known service bot, or the bot itself.
func (e *Engine) IsClassC(msg *chat.Message) (ok bool) {
	defer recoverTo("IsClassC", &ok, false)

	if msg.From == nil {
		return false
	}
	uid := msg.From.ID
	return e.reg.IsAdmin(msg.ChatID(), uid) || e.reg.IsBot(uid) || e.isSelf(msg.From)
}

// isSelf reports whether u is the bot, by configured id or by the is_self
// flag of the input.
func (e *Engine) isSelf(u *chat.User) bool {
	if u == nil {
		return false
	}
	if self := e.reg.SelfID(); self != 0 && u.ID == self {
		return true
	}
	return u.IsSelf
}

// IsClassD reports whether the sender is on the global bad-user list.
func (e *Engine) IsClassD(msg *chat.Message) (ok bool) {
	defer recoverTo("IsClassD", &ok, false)

	if msg.From == nil {
		return false
	}
	return e.IsClassDUser(msg.From.ID)
}

func (e *Engine) IsClassDUser(uid int64) (ok bool) {
	defer recoverTo("IsClassDUser", &ok, false)
	return e.reg.IsBad(uid)
}

// IsClassE reports whether the sender is trusted.
func (e *Engine) IsClassE(msg *chat.Message) (ok bool) {
	defer recoverTo("IsClassE", &ok, false)

	if msg.From == nil {
		return false
	}
	return e.IsClassEUser(msg.From.ID)
}

// IsClassEUser reports whether uid is a service bot or trusted by any
// group. Trust granted in one group counts in every group.
func (e *Engine) IsClassEUser(uid int64) (ok bool) {
	defer recoverTo("IsClassEUser", &ok, false)
	return e.reg.IsBot(uid) || e.reg.IsTrustedAnywhere(uid)
}

// IsHighScoreUser returns the sum of the user's scores. With high set the
// sum is returned only when it reaches the high-score threshold, else 0.
// Trusted users always score 0.
func (e *Engine) IsHighScoreUser(uid int64, high bool) (score float64) {
	defer recoverTo("IsHighScoreUser", &score, 0)

	if e.IsClassEUser(uid) {
		return 0
	}
	scores := e.reg.Scores(uid)
	if len(scores) == 0 {
		return 0
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	if !high || sum >= e.highScoreThreshold() {
		return sum
	}
	return 0
}

// IsWatchUser reports whether uid is on the kind watch list at now (unix
// seconds). A zero now means the current time.
func (e *Engine) IsWatchUser(uid int64, kind string, now int64) (ok bool) {
	defer recoverTo("IsWatchUser", &ok, false)

	if e.IsClassEUser(uid) {
		return false
	}
	if now == 0 {
		now = e.clock()().Unix()
	}
	return now < e.reg.WatchUntil(kind, uid)
}

// IsUserClassD reports a bad user unless the group opted out of user
// checks.
func (e *Engine) IsUserClassD(gid int64, user *chat.User) (ok bool) {
	defer recoverTo("IsUserClassD", &ok, false)

	if user == nil || e.reg.IsIgnored(IgnoreUser, gid) {
		return false
	}
	return e.IsClassDUser(user.ID)
}
