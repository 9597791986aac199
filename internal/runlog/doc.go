// Package runlog keeps a TOML record of every sync run under the working
// directory so that operators can compare runs without scraping logs.
package runlog
