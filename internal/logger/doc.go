// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder that sends progress to
//     stdout and diagnostics to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing utilities and leveled helpers (Info, InfoKV, WarnKV, ErrorKV, etc.).
//
// Every step of the installer accepts a context and extracts the logger from
// it, so each run is logged with the same scope and key-value pairs.
package logger
