// Package receipt persists a record of the last successful installer run.
//
// The FileRepository stores the Receipt as YAML next to the installations and
// exposes a Repository interface that the installer depends on.
package receipt
