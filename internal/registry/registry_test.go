package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewKeyword_NormalizesWords(t *testing.T) {
	t.Run("lower-cases and dedupes without case mode", func(t *testing.T) {
		kw, err := NewKeyword("promo", []string{"Buy", "buy", " BUY ", "{{Sale}}", ""}, 0, "", []string{"delete"}, "", 0)
		require.NoError(t, err)
		require.Equal(t, []string{"buy", "{{sale}}"}, kw.Words)
		require.Equal(t, TargetAll, kw.Target)
	})

	t.Run("keeps case with case mode", func(t *testing.T) {
		kw, err := NewKeyword("promo", []string{"Buy", "buy", "Buy"}, Modes(ModeCase), TargetMember, nil, "", 0)
		require.NoError(t, err)
		require.Equal(t, []string{"Buy", "buy"}, kw.Words)
	})

	t.Run("keeps regex words as written", func(t *testing.T) {
		kw, err := NewKeyword("nodigits", []string{`^\D+$`, `\S+\W`}, Modes(ModeRegex), "", []string{"delete"}, "", 0)
		require.NoError(t, err)
		require.Equal(t, []string{`^\D+$`, `\S+\W`}, kw.Words)
	})

	t.Run("rejects invalid definitions", func(t *testing.T) {
		_, err := NewKeyword("", []string{"a"}, 0, "", nil, "", 0)
		require.Error(t, err)
		_, err = NewKeyword("k", []string{" "}, 0, "", nil, "", 0)
		require.Error(t, err)
		_, err = NewKeyword("k", []string{"a"}, 0, "nobody", nil, "", 0)
		require.Error(t, err)
		_, err = NewKeyword("k", []string{"a"}, 0, "", nil, "", -1)
		require.Error(t, err)
	})
}

func TestModes_JSON(t *testing.T) {
	m, err := ParseModes([]string{"exact", "Regex", " forward "})
	require.NoError(t, err)
	require.True(t, m.Has(ModeExact))
	require.True(t, m.Has(ModeRegex))
	require.True(t, m.Has(ModeForward))
	require.False(t, m.Has(ModeCase))

	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `["exact","forward","regex"]`, string(data))

	var back Modes
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, m, back)

	_, err = ParseModes([]string{"fuzzy"})
	require.Error(t, err)
}

func TestState_TrustIsGlobal(t *testing.T) {
	s := New()
	s.SetTrusted(-1001, []int64{42})
	s.SetGroup(-1002, GroupConfig{Keyword: true})

	require.True(t, s.IsTrustedAnywhere(42))
	require.False(t, s.IsTrustedAnywhere(43))
}

func TestState_MarkKeyworded(t *testing.T) {
	s := New()
	require.False(t, s.MarkKeyworded(-1, "promo", 7), "first trigger is new")
	require.True(t, s.MarkKeyworded(-1, "promo", 7), "second trigger is a repeat")
	require.False(t, s.MarkKeyworded(-1, "other", 7))
	require.False(t, s.MarkKeyworded(-2, "promo", 7), "groups are independent")

	s.ResetKeyworded(-1)
	require.False(t, s.MarkKeyworded(-1, "promo", 7))
}

func TestState_KeywordTable(t *testing.T) {
	s := New()

	var hookCalls []int
	s.SetKeywordsHook(func(gid int64, table []Keyword) {
		require.Equal(t, int64(-1), gid)
		hookCalls = append(hookCalls, len(table))
	})

	a, _ := NewKeyword("a", []string{"x"}, 0, "", nil, "", 0)
	b, _ := NewKeyword("b", []string{"y"}, 0, "", nil, "", 0)
	a2, _ := NewKeyword("a", []string{"z"}, 0, "", nil, "", 0)

	s.SetKeyword(-1, a)
	s.SetKeyword(-1, b)
	s.SetKeyword(-1, a2)

	list := s.Keywords(-1)
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].Key, "replacing keeps table order")
	require.Equal(t, []string{"z"}, list[0].Words)

	require.True(t, s.RemoveKeyword(-1, "a"))
	require.False(t, s.RemoveKeyword(-1, "a"))
	require.Equal(t, []int{1, 2, 2, 1}, hookCalls)

	s.LoadKeywords(-2, []Keyword{a})
	require.Len(t, s.Keywords(-2), 1)
	require.Equal(t, []int{1, 2, 2, 1}, hookCalls, "loading does not notify")
}

func TestState_WatchAndScores(t *testing.T) {
	s := New()
	s.Watch("ban", 9, 1000)
	require.Equal(t, int64(1000), s.WatchUntil("ban", 9))
	require.Equal(t, int64(0), s.WatchUntil("delete", 9))
	s.Unwatch("ban", 9)
	require.Equal(t, int64(0), s.WatchUntil("ban", 9))

	require.Nil(t, s.Scores(9))
	s.SetScore(9, "noflood", 1.5)
	s.SetScore(9, "nospam", 2)
	scores := s.Scores(9)
	require.Equal(t, map[string]float64{"noflood": 1.5, "nospam": 2}, scores)

	scores["noflood"] = 100
	require.Equal(t, 1.5, s.Scores(9)["noflood"], "returned map is a copy")

	table := map[int64]map[string]float64{10: {"captcha": 1}}
	s.ReplaceScores(table)
	require.Nil(t, s.Scores(9), "users left out of the new table are cleared")
	require.Equal(t, map[string]float64{"captcha": 1}, s.Scores(10))

	table[10]["captcha"] = 5
	require.Equal(t, 1.0, s.Scores(10)["captcha"], "the table is copied")
}

func TestState_RemoveGroup(t *testing.T) {
	s := New()
	s.SetGroup(-1, GroupConfig{Keyword: true})
	s.SetAdmins(-1, []int64{1})
	s.Declare(-1, 10)

	require.True(t, s.IsAdmin(-1, 1))
	require.True(t, s.IsDeclared(-1, 10))
	require.Equal(t, []int64{-1}, s.Groups())

	s.RemoveGroup(-1)
	_, ok := s.Group(-1)
	require.False(t, ok)
	require.False(t, s.IsAdmin(-1, 1))
	require.False(t, s.IsDeclared(-1, 10))
}
