// Package logging provides implementations of pgcopy.Logger.
//
//   - ConsoleLogger writes to stderr (or any io.Writer), one line per call.
//   - NullLogger discards everything.
package logging
