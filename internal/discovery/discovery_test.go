package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func collect(t *testing.T, root string) ([]Candidate, []Warning) {
	t.Helper()
	walker := &Walker{Root: root}
	var got []Candidate
	warnings, err := walker.Walk(context.Background(), func(c Candidate) error {
		got = append(got, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	return got, warnings
}

func TestWalkFindsVideosAndPairsSubtitles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Movies", "Alpha (2020).mkv"))
	writeFile(t, filepath.Join(root, "Movies", "Alpha (2020).srt"))
	writeFile(t, filepath.Join(root, "Movies", "Beta.mp4"))
	writeFile(t, filepath.Join(root, "Movies", "notes.txt"))
	writeFile(t, filepath.Join(root, "Movies", "orphan.srt"))

	got, warnings := collect(t, root)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %v", len(got), got)
	}

	byBase := make(map[string]Candidate)
	for _, c := range got {
		byBase[filepath.Base(c.VideoPath)] = c
	}
	alpha := byBase["Alpha (2020).mkv"]
	if alpha.SubtitlePath == "" || filepath.Base(alpha.SubtitlePath) != "Alpha (2020).srt" {
		t.Errorf("alpha subtitle not paired: %+v", alpha)
	}
	beta := byBase["Beta.mp4"]
	if beta.SubtitlePath != "" {
		t.Errorf("beta should have no subtitle: %+v", beta)
	}
}

func TestWalkSkipsHiddenAndTempFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".hidden.mkv"))
	writeFile(t, filepath.Join(root, "movie.mkv.part"))
	writeFile(t, filepath.Join(root, "show-sample.mkv"))
	writeFile(t, filepath.Join(root, "feature-trailer.mp4"))
	writeFile(t, filepath.Join(root, "keep.mkv"))
	writeFile(t, filepath.Join(root, ".cache", "buried.mkv"))

	got, _ := collect(t, root)
	if len(got) != 1 || filepath.Base(got[0].VideoPath) != "keep.mkv" {
		t.Fatalf("expected only keep.mkv, got %v", got)
	}
}

func TestWalkRecordsUnreadableDirWarning(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits do not apply to root")
	}
	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	writeFile(t, filepath.Join(locked, "secret.mkv"))
	writeFile(t, filepath.Join(root, "open.mkv"))
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	got, warnings := collect(t, root)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %v", got)
	}
	if len(warnings) != 1 || warnings[0].Path != locked {
		t.Fatalf("expected warning for %s, got %v", locked, warnings)
	}
}

func TestWalkMissingRootFails(t *testing.T) {
	walker := &Walker{Root: filepath.Join(t.TempDir(), "gone")}
	if _, err := walker.Walk(context.Background(), func(Candidate) error { return nil }); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestWalkDoesNotLoopOnSymlinkCycle(t *testing.T) {
	root := t.TempDir()
	inner := filepath.Join(root, "inner")
	writeFile(t, filepath.Join(inner, "movie.mkv"))
	if err := os.Symlink(root, filepath.Join(inner, "loop")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	got, _ := collect(t, root)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate despite cycle, got %d", len(got))
	}
}

func TestCountMatchesWalk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mkv"))
	writeFile(t, filepath.Join(root, "b.mp4"))
	writeFile(t, filepath.Join(root, "sub", "c.avi"))

	walker := &Walker{Root: root}
	total, _, err := walker.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if total != 3 {
		t.Fatalf("Count = %d, want 3", total)
	}
}

func TestWalkStopsEarly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mkv"))
	writeFile(t, filepath.Join(root, "b.mkv"))

	walker := &Walker{Root: root}
	seen := 0
	_, err := walker.Walk(context.Background(), func(Candidate) error {
		seen++
		return ErrStop
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if seen != 1 {
		t.Fatalf("expected early stop after 1 candidate, saw %d", seen)
	}
}
