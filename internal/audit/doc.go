// Package audit relays session lifecycle events to a caller-supplied sink.
//
// # Components
//
//   - [Event] is one record: login, logout, refresh outcome or forced logout.
//   - [Sink] consumes events; channel, JSON-lines, slog and no-op sinks ship here.
//   - [Dispatcher] buffers events and delivers them on its own goroutine, either
//     dropping or blocking when the buffer is full.
//
// # What this package must NOT do
//
//   - decide which events to emit; the client does that
//   - carry raw token values in an Event
//   - import courseauth or any sibling internal package
package audit
