// Package platform owns the mirror hosting platform boundary (GitHub via gh).
//
// Ownership boundary:
// - registry snapshot of existing mirror repositories
//
// - repository creation and settings normalization
//
// Existence checks are answered from the Registry snapshot taken at the start
// of a run; the gateway never re-queries per project.
package platform
