package corpus

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"quotedesk-ai/internal/contextutil"
)

// Scanner enumerates corpus files under the configured root folders.
type Scanner struct {
	folders      []string
	includeGlobs []string
	excludeDirs  map[string]struct{}
	maxFileBytes int64
}

// NewScanner creates a scanner over the given root folders.
// includeGlobs are matched against base names; excludeDirs are directory
// names pruned anywhere in the tree.
func NewScanner(folders, includeGlobs, excludeDirs []string, maxFileBytes int64) *Scanner {
	excluded := make(map[string]struct{}, len(excludeDirs))
	for _, d := range excludeDirs {
		excluded[d] = struct{}{}
	}
	return &Scanner{
		folders:      folders,
		includeGlobs: includeGlobs,
		excludeDirs:  excluded,
		maxFileBytes: maxFileBytes,
	}
}

// Scan walks every configured folder and returns the matching file paths.
// Missing folders are skipped silently. Files are deduplicated by resolved
// absolute path, preserving first-seen order, so folders listed earlier
// (the priority folder among them) stay ahead of later ones.
func (s *Scanner) Scan(ctx context.Context) ([]string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var files []string
	for _, folder := range s.folders {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if _, err := os.Stat(folder); err != nil {
			logger.DebugContext(ctx, "skipping missing corpus folder", "folder", folder)
			continue
		}

		err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable entries are skipped, never fatal.
				logger.WarnContext(ctx, "corpus walk error", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if _, excluded := s.excludeDirs[d.Name()]; excluded {
					return filepath.SkipDir
				}
				return nil
			}
			if !s.matchesGlob(d.Name()) {
				return nil
			}
			// Size cap fails open: a stat error keeps the file.
			if info, err := d.Info(); err == nil && info.Size() > s.maxFileBytes {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return dedupeByResolvedPath(files), nil
}

func (s *Scanner) matchesGlob(name string) bool {
	for _, g := range s.includeGlobs {
		if ok, err := filepath.Match(g, name); err == nil && ok {
			return true
		}
	}
	return false
}

// dedupeByResolvedPath removes duplicates by canonical absolute path while
// preserving first-seen order. Nested roots (e.g. a priority folder inside a
// broader root) would otherwise list the same file twice.
func dedupeByResolvedPath(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	uniq := make([]string, 0, len(paths))
	for _, p := range paths {
		key := p
		if abs, err := filepath.Abs(p); err == nil {
			key = abs
		}
		if resolved, err := filepath.EvalSymlinks(key); err == nil {
			key = resolved
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, p)
	}
	return uniq
}
