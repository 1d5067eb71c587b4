package rules

import "fmt"

// Category identifies one regex rule set.
type Category uint8

const (
	Ad Category = iota
	Ban
	Bio
	Con
	Del
	Fil
	Iml
	NM
	Pho
	RM
	Sho
	Spc
	WB

	// adA is the first of the 26 letter-suffix categories ("ada".."adz").
	adA
)

const numCategories = int(adA) + 26

var baseNames = [...]string{
	Ad:  "ad",
	Ban: "ban",
	Bio: "bio",
	Con: "con",
	Del: "del",
	Fil: "fil",
	Iml: "iml",
	NM:  "nm",
	Pho: "pho",
	RM:  "rm",
	Sho: "sho",
	Spc: "spc",
	WB:  "wb",
}

// AdLetter returns the "ad" + letter category for r in 'a'..'z'.
func AdLetter(r rune) (Category, bool) {
	if r < 'a' || r > 'z' {
		return 0, false
	}
	return adA + Category(r-'a'), true
}

// Letter returns the suffix letter of an "ad" + letter category.
func (c Category) Letter() (rune, bool) {
	if c < adA || int(c) >= numCategories {
		return 0, false
	}
	return 'a' + rune(c-adA), true
}

func (c Category) Valid() bool { return int(c) < numCategories }

func (c Category) String() string {
	if c < adA {
		return baseNames[c]
	}
	if l, ok := c.Letter(); ok {
		return "ad" + string(l)
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// SaveName is the name passed to the persister after a counter update.
func (c Category) SaveName() string { return c.String() + "_words" }

// ParseCategory resolves a persisted category name.
func ParseCategory(name string) (Category, error) {
	for i, n := range baseNames {
		if n == name {
			return Category(i), nil
		}
	}
	if len(name) == 3 && name[:2] == "ad" {
		if c, ok := AdLetter(rune(name[2])); ok {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown rule category %q", name)
}

// ParseSaveName is the inverse of SaveName.
func ParseSaveName(name string) (Category, error) {
	const suffix = "_words"
	if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
		return 0, fmt.Errorf("not a rule save name: %q", name)
	}
	return ParseCategory(name[:len(name)-len(suffix)])
}

// All lists every category in declaration order.
func All() []Category {
	out := make([]Category, numCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}
