// Package notify provides a small typed listener registry used for session
// change, forced-logout, and store change fan-out.
//
// # What this package must NOT do
//
//   - Hold its lock while invoking listeners.
//   - Import courseauth or any sibling package.
package notify
