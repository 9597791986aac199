// Package server is the HTTP surface of `mirrorctl serve`.
package server
