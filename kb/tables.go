// Package kb compiles key-input sequences into ordered CDP
// Input.dispatchKeyEvent payloads: plain text (segmented into
// grapheme clusters), named special keys, and explicit modifier
// chords all reduce to the same payload shape.
package kb

// Modifier is a CDP Input.dispatchKeyEvent modifiers bitmask.
type Modifier int

// Modifier bits, in the fixed ordering the chord compiler always
// applies them: Alt, Ctrl, Meta, Shift.
const (
	ModifierNone  Modifier = 0
	ModifierAlt   Modifier = 1
	ModifierCtrl  Modifier = 2
	ModifierMeta  Modifier = 4
	ModifierShift Modifier = 8
)

// orderedModifiers is the fixed decomposition order for chord
// expansion: Alt, Ctrl, Meta, Shift.
var orderedModifiers = []Modifier{ModifierAlt, ModifierCtrl, ModifierMeta, ModifierShift}

// SpecialKey names a non-printable or control key by its CDP "key"
// string and Windows virtual keycode.
type SpecialKey struct {
	Name    string
	Keycode int
}

var (
	KeySpace     = SpecialKey{" ", 32}
	KeyEnter     = SpecialKey{"Enter", 13}
	KeyTab       = SpecialKey{"Tab", 9}
	KeyBackspace = SpecialKey{"Backspace", 8}
	KeyEscape    = SpecialKey{"Escape", 27}
	KeyDelete    = SpecialKey{"Delete", 46}

	KeyArrowDown  = SpecialKey{"ArrowDown", 40}
	KeyArrowUp    = SpecialKey{"ArrowUp", 38}
	KeyArrowLeft  = SpecialKey{"ArrowLeft", 37}
	KeyArrowRight = SpecialKey{"ArrowRight", 39}

	KeyShift = SpecialKey{"Shift", 16}
	KeyAlt   = SpecialKey{"Alt", 18}
	KeyCtrl  = SpecialKey{"Control", 17}
	KeyMeta  = SpecialKey{"Meta", 91}
)

// modifierKeyOf reports the SpecialKey a single modifier bit
// corresponds to, so the chord expansion can emit that modifier key's
// own keyDown/keyUp around the main key.
func modifierKeyOf(m Modifier) (SpecialKey, bool) {
	switch m {
	case ModifierAlt:
		return KeyAlt, true
	case ModifierCtrl:
		return KeyCtrl, true
	case ModifierMeta:
		return KeyMeta, true
	case ModifierShift:
		return KeyShift, true
	default:
		return SpecialKey{}, false
	}
}

// specialCharEntry is one row of the US-layout punctuation table (keyed
// by the literal rune): its CDP "code" name, its Windows virtual
// keycode, and the rune it types with Shift held.
type specialCharEntry struct {
	code    string
	keycode int
	shifted rune // the rune typed when Shift is held, 0 if none
}

// specialChars is the unshifted-punctuation table: semicolon through
// quote, the row of keys whose shifted form is a different printable
// character rather than a bare Shift modifier on a letter.
var specialChars = map[rune]specialCharEntry{
	';':  {"Semicolon", 186, ':'},
	'=':  {"Equal", 187, '+'},
	',':  {"Comma", 188, '<'},
	'-':  {"Minus", 189, '_'},
	'.':  {"Period", 190, '>'},
	'/':  {"Slash", 191, '?'},
	'`':  {"Backquote", 192, '~'},
	'[':  {"BracketLeft", 219, '{'},
	'\\': {"Backslash", 220, '|'},
	']':  {"BracketRight", 221, '}'},
	'\'': {"Quote", 222, '"'},
}

// shiftedToBase maps a shifted punctuation rune back to its base rune
// and marks that typing it requires Shift.
var shiftedToBase = func() map[rune]rune {
	m := make(map[rune]rune, len(specialChars))
	for base, e := range specialChars {
		if e.shifted != 0 {
			m[e.shifted] = base
		}
	}
	return m
}()

// numShift is the US-layout digit row's shifted punctuation, indexed
// by digit 0-9.
const numShift = ")!@#$%^&*("

// shiftedDigitToBase maps a shifted digit-row symbol back to its base
// digit rune.
var shiftedDigitToBase = func() map[rune]rune {
	m := make(map[rune]rune, len(numShift))
	for d, r := range numShift {
		m[r] = rune('0' + d)
	}
	return m
}()
