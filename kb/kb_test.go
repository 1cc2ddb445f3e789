package kb

import "testing"

func payloadTypes(payloads []KeyPayload) []string {
	out := make([]string, len(payloads))
	for i, p := range payloads {
		out[i] = p.Type
	}
	return out
}

func TestChordCtrlAExpandsModifierThenMainThenModifier(t *testing.T) {
	payloads, err := Compile([]InputItem{Chord{Rune: 'a', Modifiers: ModifierCtrl}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got := payloadTypes(payloads)
	want := []string{"keyDown", "keyDown", "keyUp", "keyUp"}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	// modifier keyDown, main keyDown, modifier keyUp, main keyUp - the
	// two pairs interleave: the modifier is released before the main
	// key, so neither pair nests inside the other.
	if payloads[0].Key != "Control" || payloads[0].Modifiers != ModifierCtrl {
		t.Fatalf("first event = %+v, want Control keyDown with Ctrl set", payloads[0])
	}
	if payloads[1].Key != "a" || payloads[1].Modifiers != ModifierCtrl {
		t.Fatalf("main keyDown = %+v, want key=a modifiers=Ctrl", payloads[1])
	}
	if payloads[2].Key != "Control" || payloads[2].Modifiers != ModifierNone {
		t.Fatalf("modifier keyUp = %+v, want Control with no modifiers left", payloads[2])
	}
	if payloads[3].Key != "a" || payloads[3].Modifiers != ModifierNone {
		t.Fatalf("main keyUp = %+v, want key=a with no modifiers left", payloads[3])
	}
}

func TestUppercaseLetterNormalisesToShiftPlusBase(t *testing.T) {
	payloads, err := Compile([]InputItem{Chord{Rune: 'A'}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// Shift keyDown, main keyDown, Shift keyUp, main keyUp.
	if len(payloads) != 4 {
		t.Fatalf("len(payloads) = %d, want 4: %+v", len(payloads), payloads)
	}
	if payloads[0].Key != "Shift" {
		t.Fatalf("first event = %+v, want the Shift keyDown", payloads[0])
	}
	// The key is normalised to its unshifted form: compiling 'A' must
	// match compiling 'a' with ModifierShift, event for event.
	if payloads[1].Code != "KeyA" || payloads[1].Key != "a" {
		t.Fatalf("main keyDown = %+v, want code=KeyA key=a", payloads[1])
	}
	if payloads[3].Code != "KeyA" || payloads[3].Key != "a" || payloads[3].Modifiers != ModifierNone {
		t.Fatalf("main keyUp = %+v, want code=KeyA key=a with no modifiers left", payloads[3])
	}
}

func TestModifierKeyAsMainIsNotDuplicated(t *testing.T) {
	payloads, err := Compile([]InputItem{Chord{Key: KeyShift, Modifiers: ModifierShift}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(payloads) != 2 {
		t.Fatalf("len(payloads) = %d, want 2 (just the Shift down and up, no separate main key)", len(payloads))
	}
	if payloads[0].Type != "keyDown" || payloads[1].Type != "keyUp" {
		t.Fatalf("payloads = %+v", payloads)
	}
}

func TestCompileTextEmitsOneCharEventPerGrapheme(t *testing.T) {
	payloads, err := Compile([]InputItem{Text{Value: "hi", Mode: Char}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(payloads) != 2 {
		t.Fatalf("len(payloads) = %d, want 2", len(payloads))
	}
	if payloads[0].Text != "h" || payloads[1].Text != "i" {
		t.Fatalf("payloads = %+v", payloads)
	}
	for _, p := range payloads {
		if p.Type != "char" {
			t.Fatalf("payload type = %q, want char", p.Type)
		}
	}
}

func TestCompileTextNewlineBecomesEnterChord(t *testing.T) {
	payloads, err := Compile([]InputItem{Text{Value: "a\nb", Mode: Char}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// 'a' -> one char event, '\n' -> Enter keyDown+keyUp, 'b' -> one char event.
	if len(payloads) != 4 {
		t.Fatalf("len(payloads) = %d, want 4: %+v", len(payloads), payloads)
	}
	if payloads[0].Text != "a" {
		t.Fatalf("payloads[0] = %+v", payloads[0])
	}
	if payloads[1].Type != "keyDown" || payloads[1].Key != "Enter" {
		t.Fatalf("payloads[1] = %+v, want Enter keyDown", payloads[1])
	}
	if payloads[2].Type != "keyUp" || payloads[2].Key != "Enter" {
		t.Fatalf("payloads[2] = %+v, want Enter keyUp", payloads[2])
	}
	if payloads[3].Text != "b" {
		t.Fatalf("payloads[3] = %+v", payloads[3])
	}
}

func TestCompileTextKeepsCombiningGraphemeClusterWhole(t *testing.T) {
	// "e" + COMBINING ACUTE ACCENT (U+0301) is a single grapheme
	// cluster over two runes; it has no single physical key, so it
	// must stay one CHAR event rather than splitting into two.
	value := "é"
	payloads, err := Compile([]InputItem{Text{Value: value, Mode: DownAndUp}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(payloads) != 1 {
		t.Fatalf("len(payloads) = %d, want 1: %+v", len(payloads), payloads)
	}
	if payloads[0].Type != "char" || payloads[0].Text != value {
		t.Fatalf("payloads[0] = %+v, want a single char event for %q", payloads[0], value)
	}
}

func TestDownAndUpRejectsRuneWithNoPhysicalKey(t *testing.T) {
	_, err := Compile([]InputItem{Chord{Rune: '€', Modifiers: ModifierNone}})
	if err == nil {
		t.Fatal("expected an error: '€' has no physical key mapping for a DOWN_AND_UP chord")
	}
}

func TestShiftedPunctuationNormalisesToBaseKeyPlusShift(t *testing.T) {
	payloads, err := Compile([]InputItem{Chord{Rune: ':'}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(payloads) != 4 {
		t.Fatalf("len(payloads) = %d, want 4", len(payloads))
	}
	if payloads[1].Code != "Semicolon" || payloads[1].Key != ";" {
		t.Fatalf("main keyDown = %+v, want code=Semicolon key=;", payloads[1])
	}
	if payloads[1].Modifiers != ModifierShift {
		t.Fatalf("main keyDown modifiers = %v, want Shift", payloads[1].Modifiers)
	}
}
