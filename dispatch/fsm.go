package dispatch

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// Connection states: DOWN -> CONNECTING -> SUBSCRIBING -> READY,
// with a connection-lost edge back to DOWN from any non-DOWN state.
const (
	StateDown        = "down"
	StateConnecting  = "connecting"
	StateSubscribing = "subscribing"
	StateReady       = "ready"
)

const (
	eventConnect     = "connect"
	eventConnected   = "connected"
	eventSubscribed  = "subscribed"
	eventConnectFail = "connect_fail"
	eventConnLost    = "connection_lost"
)

// wrapEvent adapts an error-returning callback to fsm.Callback. A returned
// error becomes the error of the Event call; it does not undo the state
// change, since enter_ callbacks run after the machine has already entered
// the new state (BeginConnect takes the edge back to DOWN itself).
func wrapEvent(fn func(ctx context.Context, e *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, e *fsm.Event) {
		if err := fn(ctx, e); err != nil {
			e.Err = err
		}
	}
}

// newConnectionFSM builds the per-client connection state machine. onReady
// and onConnecting are invoked on entry to those states; either may be nil.
func newConnectionFSM(onConnecting, onSubscribing, onReady, onDown func(ctx context.Context, e *fsm.Event) error) *fsm.FSM {
	callbacks := fsm.Callbacks{}
	if onConnecting != nil {
		callbacks["enter_"+StateConnecting] = wrapEvent(onConnecting)
	}
	if onSubscribing != nil {
		callbacks["enter_"+StateSubscribing] = wrapEvent(onSubscribing)
	}
	if onReady != nil {
		callbacks["enter_"+StateReady] = wrapEvent(onReady)
	}
	if onDown != nil {
		callbacks["enter_"+StateDown] = wrapEvent(onDown)
	}

	return fsm.NewFSM(
		StateDown,
		fsm.Events{
			{Name: eventConnect, Src: []string{StateDown}, Dst: StateConnecting},
			{Name: eventConnected, Src: []string{StateConnecting}, Dst: StateSubscribing},
			{Name: eventSubscribed, Src: []string{StateSubscribing}, Dst: StateReady},
			{Name: eventConnectFail, Src: []string{StateConnecting}, Dst: StateDown},
			{Name: eventConnLost, Src: []string{StateConnecting, StateSubscribing, StateReady}, Dst: StateDown},
		},
		callbacks,
	)
}

// ErrNotReady is returned by operations that require the READY state.
type ErrNotReady struct{ Current string }

func (e ErrNotReady) Error() string {
	return fmt.Sprintf("NOT_CONNECTED: client is %s, not ready", e.Current)
}
