package hls

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/videoflix/videoflix/internal/domain"
)

// Resolve joins untrusted path segments against the layout's HLS root and
// returns the normalized absolute path, or an error when the candidate
// escapes the root or does not exist as a regular file.
//
// Every externally influenced read — manifest, segment and thumbnail lookups
// alike — must go through this one routine. The escape check requires the
// normalized root plus a path separator as a strict prefix of the normalized
// candidate, which defeats ".." segments and absolute-path injection.
func (l Layout) Resolve(segments ...string) (string, error) {
	base := filepath.Clean(filepath.Join(l.Root, hlsDir))

	parts := append([]string{base}, segments...)
	candidate := filepath.Clean(filepath.Join(parts...))

	if !strings.HasPrefix(candidate, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("resolve %q: %w", filepath.Join(segments...), domain.ErrPathEscape)
	}

	info, err := os.Stat(candidate)
	if err != nil || !info.Mode().IsRegular() {
		return "", domain.ErrNotFound
	}

	return candidate, nil
}
