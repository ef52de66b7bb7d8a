package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxSuffix = 9999

// UniquePath returns original when nothing exists there. Otherwise it tries
// stem_1.ext through stem_9999.ext next to it, and finally stem_<unix>.ext.
func UniquePath(original string) string {
	return uniquePath(original, maxSuffix, time.Now)
}

func uniquePath(original string, limit int, now func() time.Time) string {
	if !exists(original) {
		return original
	}
	dir := filepath.Dir(original)
	base := filepath.Base(original)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		// dotfiles such as .env have no extension
		stem, ext = base, ""
	}
	for n := 1; n <= limit; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
		if !exists(candidate) {
			return candidate
		}
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, now().Unix(), ext))
}

// exists treats anything other than a clean not-exist as present.
func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
