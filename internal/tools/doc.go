// Package tools provides reusable runtime helpers shared by the mirror gateways.
//
// Ownership boundary:
// - command execution helpers
//
// - exit-code normalization for wrapped CLIs
//
// Gateways built on CommandRunner surface raw exit codes and output; any
// interpretation of those codes belongs to the caller.
package tools
