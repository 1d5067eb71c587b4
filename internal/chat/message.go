// Package chat holds the event model the moderation core consumes.
// Field names follow the Bot API JSON encoding so upstream adapters can
// decode updates straight into these types.
package chat

const (
	TypePrivate    = "private"
	TypeGroup      = "group"
	TypeSupergroup = "supergroup"
	TypeChannel    = "channel"

	// ServiceUserID is the account the platform uses for channel posts
	// forwarded into linked discussion groups.
	ServiceUserID = 777000
)

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	IsSelf    bool   `json:"is_self,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

type Document struct {
	FileName string `json:"file_name,omitempty"`
}

type Message struct {
	ID   int   `json:"message_id"`
	Chat *Chat `json:"chat,omitempty"`
	From *User `json:"from,omitempty"`

	Text     string    `json:"text,omitempty"`
	Caption  string    `json:"caption,omitempty"`
	Document *Document `json:"document,omitempty"`

	ForwardFrom       *User  `json:"forward_from,omitempty"`
	ForwardFromChat   *Chat  `json:"forward_from_chat,omitempty"`
	ForwardSenderName string `json:"forward_sender_name,omitempty"`
	ForwardDate       int64  `json:"forward_date,omitempty"`

	ReplyToMessage *Message `json:"reply_to_message,omitempty"`

	NewChatMembers        []User `json:"new_chat_members,omitempty"`
	GroupChatCreated      bool   `json:"group_chat_created,omitempty"`
	SupergroupChatCreated bool   `json:"supergroup_chat_created,omitempty"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from,omitempty"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// ChatID returns the chat id, or 0 when the message has no chat.
func (m *Message) ChatID() int64 {
	if m == nil || m.Chat == nil {
		return 0
	}
	return m.Chat.ID
}

// SenderID returns the sender id, or 0 for anonymous messages.
func (m *Message) SenderID() int64 {
	if m == nil || m.From == nil {
		return 0
	}
	return m.From.ID
}

func (m *Message) IsForwarded() bool {
	return m != nil && m.ForwardDate != 0
}

// TargetID is the message an action should apply to: the replied-to
// message if any, else the message itself.
func (m *Message) TargetID() int {
	if m.ReplyToMessage != nil && m.ReplyToMessage.ID != 0 {
		return m.ReplyToMessage.ID
	}
	return m.ID
}
