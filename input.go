package driftcdp

import (
	"github.com/chromedp/cdproto/input"

	"github.com/driftcdp/driftcdp/kb"
)

// KeyDispatch is one kb.KeyPayload, held ready to send as an
// Input.dispatchKeyEvent command.
type KeyDispatch struct {
	payload kb.KeyPayload
}

// CompileKeys runs the key-event compiler over items and wraps each
// resulting payload for dispatch via Tab.SendKeys.
func CompileKeys(items []kb.InputItem) ([]KeyDispatch, error) {
	payloads, err := kb.Compile(items)
	if err != nil {
		return nil, wrapErr(KindArgument, "compiling key input", err)
	}
	out := make([]KeyDispatch, len(payloads))
	for i, p := range payloads {
		out[i] = KeyDispatch{payload: p}
	}
	return out, nil
}

func (d KeyDispatch) params() *input.DispatchKeyEventParams {
	var typ input.DispatchKeyEventType
	switch d.payload.Type {
	case "keyDown":
		typ = input.KeyDown
	case "keyUp":
		typ = input.KeyUp
	case "char":
		typ = input.KeyChar
	default:
		typ = input.KeyRawDown
	}
	p := input.DispatchKeyEvent(typ).
		WithModifiers(input.Modifier(d.payload.Modifiers)).
		WithText(d.payload.Text).
		WithKey(d.payload.Key).
		WithCode(d.payload.Code).
		WithWindowsVirtualKeyCode(int64(d.payload.WindowsVirtualKeyCode)).
		WithNativeVirtualKeyCode(int64(d.payload.NativeVirtualKeyCode))
	return p
}
