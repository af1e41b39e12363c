package events

import "context"

// Emit pushes an event to whatever sink is installed. The default is a
// no-op so library code can emit unconditionally.
var Emit = func(ctx context.Context, evt Event) {}

// SetEmitter installs the process-wide event sink (the stream hub in the
// daemon, a recorder in tests). Passing nil restores the no-op.
func SetEmitter(f func(ctx context.Context, evt Event)) {
	if f == nil {
		Emit = func(context.Context, Event) {}
		return
	}
	Emit = func(ctx context.Context, evt Event) {
		if evt.SessionID == "" {
			if session := SessionFromContext(ctx); session != "" {
				evt.SessionID = session
			}
		}
		f(ctx, evt)
	}
}
