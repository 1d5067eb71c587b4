package policy

import (
	"context"
	"fmt"

	"github.com/tipbot/tipfilter/internal/chat"
)

const (
	declaredFilterName = "DeclaredFilter"
	classDFilterName   = "ClassDFilter"
	keywordFilterName  = "KeywordFilter"
	rmFilterName       = "RMFilter"
	nospamFilterName   = "NospamFilter"
)

// DeclaredFilter stops processing of messages another bot already claimed.
type DeclaredFilter struct{ engine *Engine }

func NewDeclaredFilter(e *Engine) *DeclaredFilter { return &DeclaredFilter{engine: e} }

func (f *DeclaredFilter) Match(_ context.Context, msg *chat.Message) (FilterResult, error) {
	newResult := NewResultFunc(declaredFilterName)
	if f.engine.IsDeclaredMessage(msg) {
		res, err := newResult(true, "declared_by_another_bot", nil)
		res.Final = true
		return res, err
	}
	return newResult(true, "not_declared", nil)
}

// ClassDFilter flags senders on the bad-user list.
type ClassDFilter struct{ engine *Engine }

func NewClassDFilter(e *Engine) *ClassDFilter { return &ClassDFilter{engine: e} }

func (f *ClassDFilter) Match(_ context.Context, msg *chat.Message) (FilterResult, error) {
	newResult := NewResultFunc(classDFilterName)
	if f.engine.IsUserClassD(msg.ChatID(), msg.From) {
		return newResult(false, "class_d_user", nil)
	}
	return newResult(true, "not_class_d", nil)
}

// KeywordFilter flags messages that trigger a group keyword. Repeat
// triggers by the same user are marked so callers can skip notifying.
type KeywordFilter struct{ engine *Engine }

func NewKeywordFilter(e *Engine) *KeywordFilter { return &KeywordFilter{engine: e} }

func (f *KeywordFilter) Match(_ context.Context, msg *chat.Message) (FilterResult, error) {
	newResult := NewResultFunc(keywordFilterName)

	match := f.engine.IsKeywordMessage(msg)
	if match == nil {
		return newResult(true, "no_keyword_matched", nil)
	}
	match.Terminate = f.engine.IsShouldTerminate(msg, match.Actions)
	if uid := msg.SenderID(); uid != 0 {
		match.Repeat = f.engine.IsKeywordedUser(msg.ChatID(), match.Key, uid)
	}

	res, err := newResult(false, fmt.Sprintf("keyword_matched:'%s'", match.Key), nil)
	res.Keyword = match
	return res, err
}

// RMFilter flags member messages matching the group's rm rules.
type RMFilter struct{ engine *Engine }

func NewRMFilter(e *Engine) *RMFilter { return &RMFilter{engine: e} }

func (f *RMFilter) Match(_ context.Context, msg *chat.Message) (FilterResult, error) {
	newResult := NewResultFunc(rmFilterName)
	if f.engine.IsRMText(msg) {
		return newResult(false, "rm_text", nil)
	}
	return newResult(true, "not_rm_text", nil)
}

// NospamFilter flags messages and joins the nospam bot would act on.
// Bios are not available here, so joins are judged by name only.
type NospamFilter struct{ engine *Engine }

func NewNospamFilter(e *Engine) *NospamFilter { return &NospamFilter{engine: e} }

func (f *NospamFilter) Match(_ context.Context, msg *chat.Message) (FilterResult, error) {
	newResult := NewResultFunc(nospamFilterName)
	gid := msg.ChatID()

	for i := range msg.NewChatMembers {
		u := &msg.NewChatMembers[i]
		if f.engine.IsNospamJoin(gid, u, "") {
			return newResult(false, fmt.Sprintf("nospam_join:%d", u.ID), nil)
		}
	}
	if f.engine.IsNospamMessage(msg) {
		return newResult(false, "nospam_message", nil)
	}
	return newResult(true, "not_nospam", nil)
}

// DefaultFilters returns the standard filter order.
func DefaultFilters(e *Engine) []Filter {
	return []Filter{
		NewDeclaredFilter(e),
		NewClassDFilter(e),
		NewKeywordFilter(e),
		NewRMFilter(e),
		NewNospamFilter(e),
	}
}
