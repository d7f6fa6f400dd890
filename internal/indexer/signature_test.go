package indexer

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCorpusFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestFingerprint_StableForUnchangedCorpus(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	writeCorpusFile(t, a, "alpha")
	writeCorpusFile(t, b, "beta")

	first := Fingerprint([]string{a, b})
	second := Fingerprint([]string{a, b})
	if first != second {
		t.Errorf("two scans of an unchanged corpus produced different signatures")
	}

	// Order independence: the signature sorts entries internally.
	reordered := Fingerprint([]string{b, a})
	if first != reordered {
		t.Errorf("scan order changed the signature")
	}
}

func TestFingerprint_SensitiveToChanges(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	c := filepath.Join(dir, "c.txt")
	writeCorpusFile(t, a, "alpha")
	writeCorpusFile(t, b, "beta")
	writeCorpusFile(t, c, "gamma")

	before := Fingerprint([]string{a, b, c})

	// Deleting file B between scans must change the signature.
	if err := os.Remove(b); err != nil {
		t.Fatalf("remove: %v", err)
	}
	after := Fingerprint([]string{a, c})
	if before == after {
		t.Errorf("deleting a file did not change the signature")
	}
}

func TestFingerprint_SensitiveToTouch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	writeCorpusFile(t, a, "alpha")

	before := Fingerprint([]string{a})

	// Push the mtime forward a full second; the signature uses unix seconds.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(a, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if Fingerprint([]string{a}) == before {
		t.Errorf("touching a file did not change the signature")
	}
}

func TestFingerprint_SensitiveToSize(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	writeCorpusFile(t, a, "alpha")
	before := Fingerprint([]string{a})

	writeCorpusFile(t, a, "alpha plus more bytes")
	if Fingerprint([]string{a}) == before {
		t.Errorf("changing a file's size did not change the signature")
	}
}

func TestFingerprint_UnstatableFilesDropped(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	writeCorpusFile(t, a, "alpha")

	withGhost := Fingerprint([]string{a, filepath.Join(dir, "ghost.txt")})
	without := Fingerprint([]string{a})
	if withGhost != without {
		t.Errorf("unstatable file should not contribute to the signature")
	}
}
