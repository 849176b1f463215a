// Package scanner runs library scans: it streams playable files from
// discovery, feeds them through extraction and rating, and persists one
// analysis record per file. Each scan runs on its own goroutine with
// cooperative cancellation observed between files, so a cancelled scan
// always finishes the file it already started.
package scanner
