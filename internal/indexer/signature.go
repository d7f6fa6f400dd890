package indexer

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Fingerprint computes a corpus signature over the given file set.
//
// Each stat-able file contributes "path:mtime:size"; entries are sorted so
// the result is independent of scan order, then hashed. Two scans over an
// unchanged file set produce identical signatures; any addition, removal or
// modification changes the result. Files that cannot be stat-ed are dropped
// from the signature, matching their exclusion from a rebuilt index.
func Fingerprint(paths []string) string {
	entries := make([]string, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		entries = append(entries, fmt.Sprintf("%s:%d:%d", p, info.ModTime().Unix(), info.Size()))
	}
	sort.Strings(entries)
	sum := sha256.Sum256([]byte(strings.Join(entries, "|")))
	return fmt.Sprintf("%x", sum)
}
