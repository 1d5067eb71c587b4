package chat

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Form selects the normalization steps applied by T2T.
type Form uint8

const (
	// Normal folds compatibility characters (styled letters, full-width
	// forms) into their plain equivalents.
	Normal Form = 1 << iota
	// Printable drops non-printable runes other than line breaks and tabs.
	Printable
	// Pure drops format runes and whitespace, leaving only visible content.
	Pure
)

var (
	nonPrintable = runes.Predicate(func(r rune) bool {
		if r == '\n' || r == '\r' || r == '\t' {
			return false
		}
		return !unicode.IsPrint(r)
	})
	formatting = runes.Predicate(func(r rune) bool {
		return unicode.Is(unicode.Cf, r) || unicode.IsSpace(r)
	})
)

// T2T normalizes text for matching.
func T2T(text string, form Form) string {
	if text == "" {
		return ""
	}
	if form&Normal != 0 {
		text = norm.NFKC.String(text)
	}
	if form&Printable != 0 {
		if out, _, err := transform.String(runes.Remove(nonPrintable), text); err == nil {
			text = out
		}
	}
	if form&Pure != 0 {
		if out, _, err := transform.String(runes.Remove(formatting), text); err == nil {
			text = out
		}
	}
	return text
}

// FullName joins first and last name.
func FullName(u *User, form Form) string {
	if u == nil {
		return ""
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return T2T(strings.TrimSpace(name), form)
}

// ForwardName returns the display name of a forward's origin: the user,
// the hidden sender's name, or the origin chat's title.
func ForwardName(m *Message, form Form) string {
	if m == nil {
		return ""
	}
	switch {
	case m.ForwardFrom != nil:
		return FullName(m.ForwardFrom, form)
	case m.ForwardSenderName != "":
		return T2T(m.ForwardSenderName, form)
	case m.ForwardFromChat != nil:
		return T2T(m.ForwardFromChat.Title, form)
	}
	return ""
}

// Text returns the message text, falling back to the caption.
func Text(m *Message, form Form) string {
	if m == nil {
		return ""
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	return T2T(text, form)
}

func FileName(m *Message, form Form) string {
	if m == nil || m.Document == nil {
		return ""
	}
	return T2T(m.Document.FileName, form)
}
