// Package discovery walks a library tree and yields candidate video files
// paired with their sidecar subtitles. The walk is lazy: candidates are
// delivered through a visit callback as directories are read, and calling
// Walk again restarts from the root.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".m4v": true, ".wmv": true, ".flv": true, ".webm": true,
	".ts": true, ".m2ts": true, ".mpg": true, ".mpeg": true,
	".vob": true, ".ogv": true,
}

var subtitleExtensions = map[string]bool{
	".srt": true, ".ass": true, ".ssa": true,
	".sub": true, ".vtt": true, ".sup": true,
}

// Candidate pairs a video file with an optional sidecar subtitle discovered
// in the same directory under the same base name.
type Candidate struct {
	VideoPath    string
	SubtitlePath string
}

// Warning records a directory that could not be read. Warnings are
// non-fatal; the walk continues past them.
type Warning struct {
	Path string
	Err  error
}

// ErrStop aborts a walk early without reporting an error to the caller.
var ErrStop = errors.New("discovery: stop walk")

// FindSidecarSubtitle looks next to a video file for a subtitle sharing its
// base name and returns the first match. Used when a single file is
// re-analyzed outside a full walk.
func FindSidecarSubtitle(videoPath string) string {
	base := strings.TrimSuffix(videoPath, filepath.Ext(videoPath))
	for _, ext := range []string{".srt", ".ass", ".ssa", ".sub", ".vtt", ".sup"} {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// Walker discovers candidate files under a root directory.
type Walker struct {
	Root string
}

// Count walks the tree and returns the number of candidates without
// invoking any per-file work. Used to seed progress totals.
func (w *Walker) Count(ctx context.Context) (int, []Warning, error) {
	total := 0
	warnings, err := w.Walk(ctx, func(Candidate) error {
		total++
		return nil
	})
	return total, warnings, err
}

// Walk visits every candidate under the root in deterministic order.
// Unreadable subdirectories are collected as warnings; an unreadable or
// missing root is an error. Symlinked directories are followed at most once
// per canonical path so cycles terminate.
func (w *Walker) Walk(ctx context.Context, visit func(Candidate) error) ([]Warning, error) {
	info, err := os.Stat(w.Root)
	if err != nil {
		return nil, fmt.Errorf("discovery root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("discovery root %s is not a directory", w.Root)
	}

	state := &walkState{
		visit:   visit,
		visited: make(map[string]struct{}),
	}
	if err := state.walkDir(ctx, w.Root, true); err != nil {
		if errors.Is(err, ErrStop) {
			return state.warnings, nil
		}
		return state.warnings, err
	}
	return state.warnings, nil
}

type walkState struct {
	visit    func(Candidate) error
	visited  map[string]struct{}
	warnings []Warning
}

func (s *walkState) walkDir(ctx context.Context, dir string, isRoot bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		canonical = dir
	}
	if _, seen := s.visited[canonical]; seen {
		return nil
	}
	s.visited[canonical] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if isRoot {
			return fmt.Errorf("read root directory: %w", err)
		}
		s.warnings = append(s.warnings, Warning{Path: dir, Err: err})
		return nil
	}

	var subdirs []string
	var videos []string
	subtitles := make(map[string]string)

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)
		if entry.IsDir() {
			if strings.HasPrefix(name, ".") {
				continue
			}
			subdirs = append(subdirs, path)
			continue
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil || target.IsDir() {
				// Symlinked directories are handled through the visited set;
				// dangling links are skipped.
				if err == nil {
					subdirs = append(subdirs, path)
				}
				continue
			}
		}
		if skipFile(name) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		switch {
		case videoExtensions[ext]:
			videos = append(videos, path)
		case subtitleExtensions[ext]:
			base := strings.TrimSuffix(name, filepath.Ext(name))
			if _, exists := subtitles[base]; !exists {
				subtitles[base] = path
			}
		}
	}

	for _, video := range videos {
		base := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
		candidate := Candidate{VideoPath: video, SubtitlePath: subtitles[base]}
		if err := s.visit(candidate); err != nil {
			return err
		}
	}

	for _, sub := range subdirs {
		if err := s.walkDir(ctx, sub, false); err != nil {
			return err
		}
	}
	return nil
}

// skipFile filters hidden, temporary, partial-download, and sample files
// that should never reach analysis.
func skipFile(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "__") {
		return true
	}
	for _, suffix := range []string{".tmp", ".temp", ".part", ".partial", ".!qb", ".nzbget"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	if strings.Contains(lower, "sample") && !strings.Contains(lower, "sampler") {
		return true
	}
	if strings.Contains(lower, "-trailer") || strings.Contains(lower, ".trailer.") {
		return true
	}
	return false
}
