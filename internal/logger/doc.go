// Package logger wraps zap for the clock services:
//   - a global sugared logger with a console encoder writing to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and runtime level changes,
//   - leveled helpers (Infof, WarnKV, ErrorKV, ...).
//
// Actors receive a context at construction and log through the logger stored
// in it, so every line carries the actor name.
package logger
