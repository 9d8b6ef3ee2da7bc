package canvas

import (
	"context"

	"github.com/ha1tch/flowdesigner/pkg/geom"
)

// Input is a synthetic UI event fed to Canvas.Handle. Positions are in
// screen space.
type Input interface {
	isInput()
}

// Action is the phase of a pointer gesture.
type Action int

const (
	PointerDown Action = iota
	PointerMove
	PointerUp
)

// Button identifies the pointer button of a gesture.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)

// PointerEvent is a press, move or release of the pointer.
type PointerEvent struct {
	Action Action
	Pos    geom.Point
	Button Button
	Shift  bool
}

// Key identifies a non-printable key; printable keys use KeyRune.
type Key int

const (
	KeyRune Key = iota
	KeyEscape
	KeyDelete
	KeyBackspace
	KeyEnter
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
)

// KeyEvent is a key press.
type KeyEvent struct {
	Key  Key
	Rune rune
	Ctrl bool
}

// WheelEvent is a scroll-wheel notch. Positive Delta zooms in.
type WheelEvent struct {
	Pos   geom.Point
	Delta float64
}

// DropEvent delivers a palette template dropped at Pos. Payload is the
// JSON object {type, label, data?}.
type DropEvent struct {
	Pos     geom.Point
	Payload []byte
}

// ResizeEvent reports the canvas widget's screen origin and size.
type ResizeEvent struct {
	Origin geom.Point
	Size   geom.Point
}

// MenuChoice picks an item of the open context menu by index.
type MenuChoice struct {
	Index int
}

func (PointerEvent) isInput() {}
func (KeyEvent) isInput()     {}
func (WheelEvent) isInput()   {}
func (DropEvent) isInput()    {}
func (ResizeEvent) isInput()  {}
func (MenuChoice) isInput()   {}

// EventSource delivers inputs to a running canvas.
type EventSource interface {
	Events() <-chan Input
}

// ChanSource adapts a channel to an EventSource.
type ChanSource chan Input

// Events returns the channel.
func (c ChanSource) Events() <-chan Input {
	return c
}

// Run feeds inputs from src into Handle until the context is cancelled
// or the source is closed. Run owns the canvas while it executes.
func (c *Canvas) Run(ctx context.Context, src EventSource) error {
	events := src.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-events:
			if !ok {
				return nil
			}
			c.Handle(in)
		}
	}
}
