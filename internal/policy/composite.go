package policy

import (
	"github.com/tipbot/tipfilter/internal/chat"
	"github.com/tipbot/tipfilter/internal/rules"
)

// IsAdText returns the first letter c in a..z, other than skip, whose
// "ad"+c category matches text, or 0.
func (e *Engine) IsAdText(text string, ocr bool, skip rune) (letter rune) {
	defer recoverTo("IsAdText", &letter, 0)

	if text == "" {
		return 0
	}
	for c := 'a'; c <= 'z'; c++ {
		if c == skip {
			continue
		}
		cat, _ := rules.AdLetter(c)
		if e.hit(cat, text, ocr) {
			return c
		}
	}
	return 0
}

// IsConText reports contact-like text: con, iml or pho.
func (e *Engine) IsConText(text string, ocr bool) (ok bool) {
	defer recoverTo("IsConText", &ok, false)
	return e.hit(rules.Con, text, ocr) || e.hit(rules.Iml, text, ocr) || e.hit(rules.Pho, text, ocr)
}

// IsBanText checks, in order: ban; ad with contact; ad-dense emoji with
// contact; an ad letter with contact; an ad letter with ad-dense emoji;
// two distinct ad letters.
func (e *Engine) IsBanText(text string, ocr bool) (ok bool) {
	defer recoverTo("IsBanText", &ok, false)

	if e.hit(rules.Ban, text, ocr) {
		return true
	}

	ad := e.hit(rules.Ad, text, ocr)
	con := e.IsConText(text, ocr)
	if ad && con {
		return true
	}

	emoji := e.IsEmoji(EmojiAd, text)
	if emoji && con {
		return true
	}

	letter := e.IsAdText(text, ocr, 0)
	if letter == 0 {
		return false
	}
	if con || emoji {
		return true
	}
	return e.IsAdText(text, ocr, letter) != 0
}

func (e *Engine) IsBioText(text string) (ok bool) {
	defer recoverTo("IsBioText", &ok, false)
	return e.hit(rules.Bio, text, false) || e.IsBanText(text, false)
}

// IsNMText checks names: nm, bio or ban text.
func (e *Engine) IsNMText(text string) (ok bool) {
	defer recoverTo("IsNMText", &ok, false)
	return e.hit(rules.NM, text, false) || e.hit(rules.Bio, text, false) || e.IsBanText(text, false)
}

// IsWBText reports word-boundary spam: wb, ad, iml, pho, sho, spc, or any
// ad letter except 'i'.
func (e *Engine) IsWBText(text string, ocr bool) (ok bool) {
	defer recoverTo("IsWBText", &ok, false)

	for _, cat := range []rules.Category{rules.WB, rules.Ad, rules.Iml, rules.Pho, rules.Sho, rules.Spc} {
		if e.hit(cat, text, ocr) {
			return true
		}
	}
	return e.IsAdText(text, ocr, 'i') != 0
}

// IsRMText reports a message from a member that matches the rm category in
// a group with rm replies configured.
func (e *Engine) IsRMText(msg *chat.Message) (ok bool) {
	defer recoverTo("IsRMText", &ok, false)

	if e.IsClassC(msg) {
		return false
	}
	cfg, found := e.reg.Group(msg.Chat.ID)
	if !found || !cfg.RM || cfg.RMReply == "" {
		return false
	}
	return e.hit(rules.RM, chat.Text(msg, 0), false)
}

// nospamActive reports whether the nospam bot administers gid.
func (e *Engine) nospamActive(gid int64) bool {
	id := e.reg.NospamID()
	return id != 0 && e.reg.IsAdmin(gid, id)
}

// IsNospamMessage reports whether the nospam bot would handle the message,
// judging forward name, sender name, text and file name.
func (e *Engine) IsNospamMessage(msg *chat.Message) (ok bool) {
	defer recoverTo("IsNospamMessage", &ok, false)

	if !e.nospamActive(msg.Chat.ID) {
		return false
	}

	const nameForm = chat.Normal | chat.Printable | chat.Pure
	if name := chat.ForwardName(msg, nameForm); name != "" && e.IsNMText(name) {
		return true
	}
	if name := chat.FullName(msg.From, nameForm); name != "" && e.IsNMText(name) {
		return true
	}

	const textForm = chat.Normal | chat.Printable
	text := chat.Text(msg, textForm)
	if e.IsBanText(text, false) || e.hit(rules.Del, text, false) {
		return true
	}

	file := chat.FileName(msg, textForm)
	return e.IsBanText(file, false) || e.hit(rules.Fil, file, false) || e.hit(rules.Del, file, false)
}

// IsNospamJoin reports whether the nospam bot would handle a member
// joining gid, judging the name and the bio supplied by the caller.
func (e *Engine) IsNospamJoin(gid int64, user *chat.User, bio string) (ok bool) {
	defer recoverTo("IsNospamJoin", &ok, false)

	if user == nil || !e.nospamActive(gid) || e.reg.IsIgnored(IgnoreNospam, gid) {
		return false
	}

	if name := chat.FullName(user, chat.Normal|chat.Printable|chat.Pure); name != "" && e.IsNMText(name) {
		return true
	}
	bio = chat.T2T(bio, chat.Normal|chat.Printable|chat.Pure)
	return bio != "" && e.IsBioText(bio)
}
