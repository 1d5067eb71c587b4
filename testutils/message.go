// testutils/message.go
package testutils

import (
	"sync/atomic"

	"github.com/tipbot/tipfilter/internal/chat"
)

// TestGroupID is a supergroup id for tests that don't need a specific chat.
const TestGroupID int64 = -1001000000001

// nextID hands out message ids so every built message is distinct.
var nextID atomic.Int64

// MakeMessage builds a supergroup text message from uid.
func MakeMessage(gid, uid int64, text string) *chat.Message {
	return &chat.Message{
		ID:   int(100 + nextID.Add(1)),
		Chat: &chat.Chat{ID: gid, Type: chat.TypeSupergroup, Title: "test group"},
		From: &chat.User{ID: uid, FirstName: "user"},
		Text: text,
	}
}

// MakeForward builds a message forwarded from the named user.
func MakeForward(gid, uid int64, text, originName string) *chat.Message {
	m := MakeMessage(gid, uid, text)
	m.ForwardFrom = &chat.User{ID: uid + 1, FirstName: originName}
	m.ForwardDate = 1700000000
	return m
}

// MakeReply builds a message replying to the message with id replyTo.
func MakeReply(gid, uid int64, text string, replyTo int) *chat.Message {
	m := MakeMessage(gid, uid, text)
	m.ReplyToMessage = &chat.Message{ID: replyTo, Chat: m.Chat}
	return m
}

// MakeJoin builds a service message announcing new members.
func MakeJoin(gid int64, members ...chat.User) *chat.Message {
	m := MakeMessage(gid, members[0].ID, "")
	m.From = &members[0]
	m.NewChatMembers = members
	return m
}
