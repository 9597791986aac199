// Package catalog reads the origin forge's project directory.
//
// Ownership boundary:
// - fetching the directory search page
//
// - extracting project id -> description rows in page order
//
// Retry policy does not live here; callers decide whether to try again.
package catalog
