package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestT2T(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		form Form
		want string
	}{
		{"untouched", "Hello World", 0, "Hello World"},
		{"full-width folded", "ＳＰＡＭ", Normal, "SPAM"},
		{"styled letters folded", "𝐬𝐩𝐚𝐦", Normal, "spam"},
		{"control runes dropped", "a\u0007b\nc", Printable, "ab\nc"},
		{"zero-width and spaces dropped", "J\u200bo h n", Pure, "John"},
		{"all steps", "Ｊ\u200do h\u0007n", Normal | Printable | Pure, "John"},
		{"empty", "", Normal | Pure, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, T2T(tc.in, tc.form))
		})
	}
}

func TestNames(t *testing.T) {
	u := &User{ID: 1, FirstName: "Jane", LastName: "Doe"}
	require.Equal(t, "Jane Doe", FullName(u, 0))
	require.Equal(t, "JaneDoe", FullName(u, Pure))
	require.Equal(t, "", FullName(nil, Normal))

	m := &Message{ForwardFrom: u, ForwardDate: 1}
	require.Equal(t, "Jane Doe", ForwardName(m, 0))

	m = &Message{ForwardSenderName: "Hidden", ForwardDate: 1}
	require.Equal(t, "Hidden", ForwardName(m, 0))

	m = &Message{ForwardFromChat: &Chat{ID: -1, Title: "Channel"}, ForwardDate: 1}
	require.Equal(t, "Channel", ForwardName(m, 0))

	require.Equal(t, "", ForwardName(&Message{}, 0))
}

func TestMessageHelpers(t *testing.T) {
	m := &Message{ID: 10, Chat: &Chat{ID: -100}, From: &User{ID: 5}, Caption: "cap"}
	require.Equal(t, int64(-100), m.ChatID())
	require.Equal(t, int64(5), m.SenderID())
	require.Equal(t, "cap", Text(m, 0))
	require.Equal(t, 10, m.TargetID())
	require.False(t, m.IsForwarded())

	m.ReplyToMessage = &Message{ID: 7}
	require.Equal(t, 7, m.TargetID())

	var nilMsg *Message
	require.Equal(t, int64(0), nilMsg.ChatID())
	require.Equal(t, "", Text(nilMsg, Normal))
}
