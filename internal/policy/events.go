package policy

import (
	"github.com/tipbot/tipfilter/internal/chat"
)

// Ignore kinds a group can opt out of.
const (
	IgnoreNospam = "nospam"
	IgnoreUser   = "user"
)

// IsAuthorizedGroup reports a message from a supergroup this bot serves.
func (e *Engine) IsAuthorizedGroup(msg *chat.Message) (ok bool) {
	defer recoverTo("IsAuthorizedGroup", &ok, false)

	if msg.Chat == nil || msg.Chat.Type != chat.TypeSupergroup {
		return false
	}
	cid := msg.Chat.ID
	if cid > 0 {
		return false
	}
	_, known := e.reg.Group(cid)
	return known
}

// IsAuthorizedCallback applies IsAuthorizedGroup to the callback's message.
func (e *Engine) IsAuthorizedCallback(cq *chat.CallbackQuery) (ok bool) {
	defer recoverTo("IsAuthorizedCallback", &ok, false)
	return e.IsAuthorizedGroup(cq.Message)
}

// IsFromUser reports a message with a real sender, excluding the platform
// service account.
func (e *Engine) IsFromUser(msg *chat.Message) (ok bool) {
	defer recoverTo("IsFromUser", &ok, false)
	return msg.From != nil && msg.From.ID != chat.ServiceUserID
}

// IsCallbackFromUser is IsFromUser for callbacks, which must also come
// from a private chat.
func (e *Engine) IsCallbackFromUser(cq *chat.CallbackQuery) (ok bool) {
	defer recoverTo("IsCallbackFromUser", &ok, false)

	if cq.Message == nil || cq.Message.Chat == nil || cq.Message.Chat.ID < 0 {
		return false
	}
	return cq.From != nil && cq.From.ID != chat.ServiceUserID
}

// IsNewGroup reports that the bot itself was added or the group was just
// created.
func (e *Engine) IsNewGroup(msg *chat.Message) (ok bool) {
	defer recoverTo("IsNewGroup", &ok, false)

	if len(msg.NewChatMembers) > 0 {
		for i := range msg.NewChatMembers {
			if e.isSelf(&msg.NewChatMembers[i]) {
				return true
			}
		}
		return false
	}
	return msg.GroupChatCreated || msg.SupergroupChatCreated
}

func (e *Engine) IsTestGroup(msg *chat.Message) (ok bool) {
	defer recoverTo("IsTestGroup", &ok, false)

	if msg.Chat == nil || msg.Chat.Type != chat.TypeSupergroup {
		return false
	}
	return msg.Chat.ID == e.reg.Channels().TestGroup
}

// IsExchangeChannel reports a message from the channel bots currently use
// to exchange data: the hide channel while hiding, else the exchange
// channel.
func (e *Engine) IsExchangeChannel(msg *chat.Message) (ok bool) {
	defer recoverTo("IsExchangeChannel", &ok, false)

	if msg.Chat == nil {
		return false
	}
	ch := e.reg.Channels()
	if ch.ShouldHide {
		return msg.Chat.ID == ch.Hide
	}
	return msg.Chat.ID == ch.Exchange
}

func (e *Engine) IsHideChannel(msg *chat.Message) (ok bool) {
	defer recoverTo("IsHideChannel", &ok, false)

	if msg.Chat == nil {
		return false
	}
	return msg.Chat.ID == e.reg.Channels().Hide
}

// IsDeclaredMessage reports a message another bot already claimed.
func (e *Engine) IsDeclaredMessage(msg *chat.Message) (ok bool) {
	defer recoverTo("IsDeclaredMessage", &ok, false)

	if msg.Chat == nil {
		return false
	}
	return e.reg.IsDeclared(msg.Chat.ID, msg.ID)
}

// IsAIO reports all-in-one deployment mode.
func (e *Engine) IsAIO() (ok bool) {
	defer recoverTo("IsAIO", &ok, false)
	return e.reg.Channels().AIO
}
