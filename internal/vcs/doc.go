// Package vcs wraps the git CLI as typed mirror operations.
//
// Ownership boundary:
// - clone, pull, push, and legacy (CVS) import invocations
//
// - classification of raw (exit code, output) pairs into Signals
//
// Gateway calls never reinterpret exit codes. Classify* functions hold the
// mapping tables and are the only place that encodes tool-specific conventions.
package vcs
