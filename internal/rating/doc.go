// Package rating scores technical attributes against configured support
// tables and derives a Direct-Play/Remux/Transcode verdict per playback
// client.
//
// Rate is a pure function: identical attributes and configuration always
// produce identical output, which is what allows ratings to be recalculated
// from stored attributes without re-running extraction. Configuration is
// snapshotted into an immutable Config per call and never cached inside the
// engine.
package rating
