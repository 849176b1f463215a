// Package ffprobe wraps the external ffprobe tool and adapts its JSON
// output into the media attribute model.
//
// Extraction failures are data, not errors: a non-zero exit, empty output,
// or unparseable payload produces a media.BrokenResult so the caller can
// record the file as broken and keep scanning.
package ffprobe
