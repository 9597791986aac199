// Package mirror owns synchronization of origin projects into mirror repositories.
//
// Ownership boundary:
// - catalog vs registry reconciliation
//
// - the per-project workflow (clone or import, create, settings, push)
//
// - bounded concurrent scheduling and run summaries
//
// Lifecycle order per project:
// - local copy check -> clone/import or pull -> mirror check -> create -> settings -> push
//
// - a workflow always resolves to an Outcome; only catalog and registry
// fetch failures end a run early.
//
// The legacy-import capability is the only state shared between workflows.
package mirror
