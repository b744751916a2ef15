// Package logging provides implementations of the dynis.Logger interface.
//
// Available implementations:
//   - Logger: logrus-backed, text on a terminal and JSON otherwise
//   - MemoryLogger: records entries for assertions in tests
//   - NullLogger: discards everything
//
// Messages carry named placeholders ({total}, {item_set_id}) that are
// interpolated from the event fields; the fields are also attached to the
// structured output. All implementations are safe for concurrent use.
package logging
