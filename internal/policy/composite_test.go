package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tipbot/tipfilter/internal/chat"
	"github.com/tipbot/tipfilter/internal/registry"
	"github.com/tipbot/tipfilter/internal/rules"
	"github.com/tipbot/tipfilter/testutils"
)

func TestIsEmoji(t *testing.T) {
	e, _ := newTestEngine(t, registry.GroupConfig{})

	testCases := []struct {
		name    string
		profile EmojiProfile
		text    string
		want    bool
	}{
		{"single emoji at ad threshold", EmojiAd, "deal " + strings.Repeat("🔥", 5), true},
		{"single emoji below ad threshold", EmojiAd, "deal " + strings.Repeat("🔥", 4), false},
		{"ad total threshold", EmojiAd, strings.Repeat("🔥", 3) + strings.Repeat("💰", 3), true},
		{"protected emoji ignored", EmojiAd, strings.Repeat("🚀", 10), false},
		{"many profile uses total only", EmojiMany, strings.Repeat("🔥", 7), false},
		{"many profile at total", EmojiMany, strings.Repeat("🔥", 4) + strings.Repeat("💰", 4), true},
		{"wb single", EmojiWB, "🔥🔥🔥", true},
		{"no emoji", EmojiWB, "plain text", false},
		{"unknown profile", EmojiProfile("other"), strings.Repeat("🔥", 20), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, e.IsEmoji(tc.profile, tc.text))
		})
	}
}

func TestEmojiIndex_DropsCoveredEmoji(t *testing.T) {
	e, _ := newTestEngine(t, registry.GroupConfig{})

	counts := e.emojiIndex().counts("❤️❤️❤️")
	require.Equal(t, map[string]int{"❤️": 3}, counts, "the bare heart is part of the heart with variation selector")

	counts = e.emojiIndex().counts("❤ 🔥🔥")
	require.Equal(t, map[string]int{"❤": 1, "🔥": 2}, counts)
}

func TestIsEmojiMessage_UsesCaption(t *testing.T) {
	e, _ := newTestEngine(t, registry.GroupConfig{})
	msg := testutils.MakeMessage(gid, userID, "")
	msg.Caption = strings.Repeat("💰", 5)
	require.True(t, e.IsEmojiMessage(EmojiAd, msg))
}

func TestIsBanText(t *testing.T) {
	e, _ := newTestEngine(t, registry.GroupConfig{})
	setRules(e, rules.Ban, `scam\s*coin`)
	setRules(e, rules.Ad, `buy now`)
	setRules(e, rules.Con, `@\w{5,}`)
	letterA, _ := rules.AdLetter('a')
	letterB, _ := rules.AdLetter('b')
	setRules(e, letterA, `airdrop`)
	setRules(e, letterB, `bonus`)

	testCases := []struct {
		name string
		text string
		want bool
	}{
		{"ban category", "new SCAM coin", true},
		{"ad alone", "buy now", false},
		{"ad with contact", "buy now @seller", true},
		{"emoji with contact", strings.Repeat("🔥", 5) + " @seller", true},
		{"emoji alone", strings.Repeat("🔥", 5), false},
		{"ad letter with contact", "airdrop @seller", true},
		{"ad letter with emoji", "airdrop " + strings.Repeat("🔥", 5), true},
		{"single ad letter", "airdrop", false},
		{"two ad letters", "airdrop bonus", true},
		{"clean text", "hello there", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, e.IsBanText(tc.text, false))
		})
	}
}

func TestIsAdText_LetterOrder(t *testing.T) {
	e, _ := newTestEngine(t, registry.GroupConfig{})
	for _, c := range "czb" {
		cat, _ := rules.AdLetter(c)
		setRules(e, cat, "promo")
	}

	require.Equal(t, 'b', e.IsAdText("promo", false, 0))
	require.Equal(t, 'c', e.IsAdText("promo", false, 'b'))
	require.Equal(t, rune(0), e.IsAdText("", false, 0))
	require.Equal(t, rune(0), e.IsAdText("nothing", false, 0))
}

func TestIsWBText(t *testing.T) {
	e, _ := newTestEngine(t, registry.GroupConfig{})
	letterI, _ := rules.AdLetter('i')
	letterJ, _ := rules.AdLetter('j')
	setRules(e, letterI, "invest")
	setRules(e, letterJ, "jackpot")
	setRules(e, rules.Sho, `bit\.ly`)

	require.False(t, e.IsWBText("invest", false), "the i letter category is excluded")
	require.True(t, e.IsWBText("jackpot", false))
	require.True(t, e.IsWBText("see bit.ly/x", false))
	require.False(t, e.IsWBText("hello", false))
}

func TestIsNMAndBioText(t *testing.T) {
	e, _ := newTestEngine(t, registry.GroupConfig{})
	setRules(e, rules.NM, "admin")
	setRules(e, rules.Bio, "dm me")
	setRules(e, rules.Ban, "scam")

	require.True(t, e.IsNMText("realadmin"))
	require.True(t, e.IsNMText("dm me now"))
	require.True(t, e.IsNMText("scam"))
	require.False(t, e.IsNMText("alice"))

	require.True(t, e.IsBioText("dm me"))
	require.False(t, e.IsBioText("realadmin"))
}

func TestIsRMText(t *testing.T) {
	e, reg := newTestEngine(t, registry.GroupConfig{RM: true, RMReply: "no links please"})
	setRules(e, rules.RM, `https?://`)

	require.True(t, e.IsRMText(testutils.MakeMessage(gid, userID, "see http://x.io")))
	require.False(t, e.IsRMText(testutils.MakeMessage(gid, adminID, "see http://x.io")), "admins are exempt")
	require.False(t, e.IsRMText(testutils.MakeMessage(gid, userID, "hello")))

	reg.SetGroup(gid, registry.GroupConfig{RM: true})
	require.False(t, e.IsRMText(testutils.MakeMessage(gid, userID, "see http://x.io")), "no reply configured")
}

func TestIsNospam(t *testing.T) {
	e, reg := newTestEngine(t, registry.GroupConfig{})
	setRules(e, rules.NM, "crypto")
	setRules(e, rules.Bio, `dm\s*me`)
	setRules(e, rules.Del, "giveaway")
	setRules(e, rules.Fil, `\.apk$`)

	msg := testutils.MakeMessage(gid, userID, "free giveaway")
	require.False(t, e.IsNospamMessage(msg), "nospam bot is not an admin yet")

	reg.SetNospamID(888)
	reg.SetAdmins(gid, []int64{adminID, 888})
	require.True(t, e.IsNospamMessage(msg))
	require.False(t, e.IsNospamMessage(testutils.MakeMessage(gid, userID, "hello")))

	named := testutils.MakeMessage(gid, userID, "hello")
	named.From.FirstName = "Crypto Deals"
	require.True(t, e.IsNospamMessage(named))

	file := testutils.MakeMessage(gid, userID, "")
	file.Document = &chat.Document{FileName: "app.apk"}
	require.True(t, e.IsNospamMessage(file))

	require.True(t, e.IsNospamJoin(gid, &chat.User{ID: 9, FirstName: "crypto"}, ""))
	require.True(t, e.IsNospamJoin(gid, &chat.User{ID: 9, FirstName: "bob"}, "DM me for offers"))
	require.False(t, e.IsNospamJoin(gid, &chat.User{ID: 9, FirstName: "bob"}, "hi"))

	reg.SetIgnore(IgnoreNospam, []int64{gid})
	require.False(t, e.IsNospamJoin(gid, &chat.User{ID: 9, FirstName: "crypto"}, ""))
}

func TestCategoryCountersAdvanceOncePerHit(t *testing.T) {
	e, _ := newTestEngine(t, registry.GroupConfig{})
	setRules(e, rules.Ad, "first", "buy")
	setRules(e, rules.Con, "@contact")

	require.True(t, e.IsBanText("buy @contact", false))
	store := e.Matcher().Store()
	require.Equal(t, 1, store.Count(rules.Ad, "buy"))
	require.Equal(t, 0, store.Count(rules.Ad, "first"))
	require.Equal(t, 1, store.Count(rules.Con, "@contact"))
}
