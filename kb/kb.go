package kb

import (
	"fmt"

	"github.com/rivo/uniseg"
)

// EmissionMode selects how a single key resolves to CDP events.
type EmissionMode int

const (
	// Char emits a single "char" event carrying the produced text.
	// It has no physical key/code and cannot express a chord.
	Char EmissionMode = iota
	// DownAndUp emits a full keyDown/keyUp pair (with any modifier
	// chord around it). It requires the key to have a physical
	// code/keycode mapping.
	DownAndUp
)

// KeyPayload is one CDP Input.dispatchKeyEvent call's parameters.
type KeyPayload struct {
	Type                  string
	Modifiers             Modifier
	Text                  string
	Key                   string
	Code                  string
	WindowsVirtualKeyCode int
	NativeVirtualKeyCode  int
}

// InputItem is one element of a mixed key-input sequence: plain text,
// a bare special key, or an explicit modifier chord.
type InputItem interface{ isInputItem() }

// Text is a run of plain typed text. It is segmented into grapheme
// clusters; newlines become Enter, tabs become Tab, spaces become
// Space, and every other cluster is compiled with Mode - except a
// cluster with no single-key physical mapping (multi-rune clusters,
// most emoji), which always emits CHAR regardless of Mode, since
// there is no physical key to hold down for it.
type Text struct {
	Value string
	Mode  EmissionMode
}

func (Text) isInputItem() {}

// Special is a bare special key (Enter, Tab, arrows, ...) pressed with
// no modifiers.
type Special struct {
	Key SpecialKey
}

func (Special) isInputItem() {}

// Chord is one explicit keypress with a modifier mask: either a
// printable rune (Rune != 0) or a special key (Key set).
type Chord struct {
	Rune      rune
	Key       SpecialKey
	Modifiers Modifier
}

func (Chord) isInputItem() {}

// Compile reduces a mixed sequence of InputItems to the ordered list
// of CDP key payloads that reproduce it.
func Compile(items []InputItem) ([]KeyPayload, error) {
	var out []KeyPayload
	for _, item := range items {
		payloads, err := compileItem(item)
		if err != nil {
			return nil, err
		}
		out = append(out, payloads...)
	}
	return out, nil
}

func compileItem(item InputItem) ([]KeyPayload, error) {
	switch v := item.(type) {
	case Text:
		return compileText(v)
	case Special:
		ki := lookupSpecial(v.Key)
		return compileKey(ki, ModifierNone, DownAndUp)
	case Chord:
		var ki keyInfo
		if v.Rune != 0 {
			var err error
			ki, err = lookupRune(v.Rune)
			if err != nil {
				return nil, err
			}
		} else {
			ki = lookupSpecial(v.Key)
		}
		return compileKey(ki, v.Modifiers, DownAndUp)
	default:
		return nil, fmt.Errorf("kb: unknown input item %T", item)
	}
}

func compileText(t Text) ([]KeyPayload, error) {
	var out []KeyPayload
	g := uniseg.NewGraphemes(t.Value)
	for g.Next() {
		cluster := g.Runes()
		switch {
		case len(cluster) == 1 && (cluster[0] == '\n' || cluster[0] == '\r'):
			p, err := compileKey(lookupSpecial(KeyEnter), ModifierNone, DownAndUp)
			if err != nil {
				return nil, err
			}
			out = append(out, p...)
		case len(cluster) == 1 && cluster[0] == '\t':
			p, err := compileKey(lookupSpecial(KeyTab), ModifierNone, DownAndUp)
			if err != nil {
				return nil, err
			}
			out = append(out, p...)
		case len(cluster) == 1 && cluster[0] == ' ':
			p, err := compileKey(lookupSpecial(KeySpace), ModifierNone, DownAndUp)
			if err != nil {
				return nil, err
			}
			out = append(out, p...)
		case len(cluster) == 1:
			ki, err := lookupRune(cluster[0])
			if err != nil {
				return nil, err
			}
			if t.Mode == Char || ki.code == "" {
				// CHAR carries the literal rune as typed, so a shifted
				// character such as 'H' or ':' keeps its own text. A
				// rune with no physical key (e.g. most non-Latin or
				// symbolic characters) is always sent this way.
				out = append(out, KeyPayload{Type: "char", Text: string(cluster), Key: string(cluster)})
				continue
			}
			p, err := compileKey(ki, ModifierNone, t.Mode)
			if err != nil {
				return nil, err
			}
			out = append(out, p...)
		default:
			// A multi-rune grapheme cluster (most emoji, combining
			// sequences) has no single physical key; always CHAR.
			out = append(out, KeyPayload{Type: "char", Text: string(cluster), Key: string(cluster)})
		}
	}
	return out, nil
}

// keyInfo is the resolved physical-key identity of one rune or
// special key: its CDP "key" string, physical "code", keycode, and
// whether producing it requires holding Shift.
type keyInfo struct {
	key      string
	code     string
	keycode  int
	shiftBit bool
}

func lookupSpecial(s SpecialKey) keyInfo {
	return keyInfo{key: s.Name, code: s.Name, keycode: s.Keycode}
}

func lookupRune(r rune) (keyInfo, error) {
	switch {
	case r >= 'a' && r <= 'z':
		return keyInfo{key: string(r), code: "Key" + string(r-'a'+'A'), keycode: int(r - 'a' + 'A')}, nil
	case r >= 'A' && r <= 'Z':
		// A chord for 'A' is "the 'a' key with Shift held", not a
		// distinct "A" key: normalise to the unshifted key so that
		// compiling 'A' produces exactly the same event list as
		// compiling 'a' with ModifierShift.
		base := r - 'A' + 'a'
		return keyInfo{key: string(base), code: "Key" + string(r), keycode: int(r), shiftBit: true}, nil
	case r >= '0' && r <= '9':
		return keyInfo{key: string(r), code: "Digit" + string(r), keycode: int(r)}, nil
	}
	if base, ok := shiftedDigitToBase[r]; ok {
		return keyInfo{key: string(base), code: "Digit" + string(base), keycode: int(base), shiftBit: true}, nil
	}
	if e, ok := specialChars[r]; ok {
		return keyInfo{key: string(r), code: e.code, keycode: e.keycode}, nil
	}
	if base, ok := shiftedToBase[r]; ok {
		e := specialChars[base]
		return keyInfo{key: string(base), code: e.code, keycode: e.keycode, shiftBit: true}, nil
	}
	// No physical-key mapping; callers in DownAndUp mode get an error,
	// callers in Char mode (the only sensible mode here) never reach it.
	return keyInfo{key: string(r)}, nil
}

func isModifierKey(code string) bool {
	return code == KeyAlt.Name || code == KeyCtrl.Name || code == KeyMeta.Name || code == KeyShift.Name
}

func compileKey(ki keyInfo, modifiers Modifier, mode EmissionMode) ([]KeyPayload, error) {
	if ki.shiftBit {
		modifiers |= ModifierShift
	}
	switch mode {
	case Char:
		return []KeyPayload{{Type: "char", Text: ki.key, Key: ki.key, Modifiers: modifiers}}, nil
	case DownAndUp:
		if ki.code == "" {
			return nil, fmt.Errorf("kb: %q has no physical key mapping for keyDown/keyUp", ki.key)
		}
		return downUpSequence(ki, modifiers), nil
	default:
		return nil, fmt.Errorf("kb: unsupported emission mode %v", mode)
	}
}

// downUpSequence is the chord expansion algorithm: modifier keyDowns
// in fixed Alt/Ctrl/Meta/Shift order (accumulating the mask as each
// fires), then the main key's keyDown (skipped if the main key is
// itself one of the four modifier keys), then modifier keyUps in the
// same fixed order (removing bits as each fires), then the main key's
// keyUp (again skipped if it is a modifier key).
func downUpSequence(ki keyInfo, modifiers Modifier) []KeyPayload {
	var out []KeyPayload
	mainIsModifier := isModifierKey(ki.code)
	current := ModifierNone

	for _, m := range orderedModifiers {
		if modifiers&m == 0 {
			continue
		}
		mk, _ := modifierKeyOf(m)
		current |= m
		out = append(out, KeyPayload{
			Type: "keyDown", Key: mk.Name, Code: mk.Name,
			Modifiers: current, WindowsVirtualKeyCode: mk.Keycode, NativeVirtualKeyCode: mk.Keycode,
		})
	}

	if !mainIsModifier {
		out = append(out, KeyPayload{
			Type: "keyDown", Key: ki.key, Code: ki.code,
			Modifiers: current, WindowsVirtualKeyCode: ki.keycode, NativeVirtualKeyCode: ki.keycode,
		})
	}

	for _, m := range orderedModifiers {
		if modifiers&m == 0 {
			continue
		}
		mk, _ := modifierKeyOf(m)
		current &^= m
		out = append(out, KeyPayload{
			Type: "keyUp", Key: mk.Name, Code: mk.Name,
			Modifiers: current, WindowsVirtualKeyCode: mk.Keycode, NativeVirtualKeyCode: mk.Keycode,
		})
	}

	if !mainIsModifier {
		out = append(out, KeyPayload{
			Type: "keyUp", Key: ki.key, Code: ki.code,
			Modifiers: current, WindowsVirtualKeyCode: ki.keycode, NativeVirtualKeyCode: ki.keycode,
		})
	}

	return out
}
