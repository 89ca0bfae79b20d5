package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rote-dev/rote-go/pkg/errors"
)

// ScreenshotSink writes captured screenshots to a directory, one PNG per
// capture. Labels become filename prefixes so failure shots from the same
// task sort together.
type ScreenshotSink struct {
	dir string
}

// NewScreenshotSink creates a sink rooted at dir. The directory is
// created on first save, not here.
func NewScreenshotSink(dir string) *ScreenshotSink {
	return &ScreenshotSink{dir: dir}
}

// Dir returns the directory screenshots are saved under.
func (s *ScreenshotSink) Dir() string {
	return s.dir
}

// Save persists the image and returns the path it was written to.
func (s *ScreenshotSink) Save(label string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New(errors.InvalidInput, "refusing to save an empty screenshot")
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", errors.Wrap(err, errors.PersistenceFailed, "failed to create screenshot directory")
	}

	name := fmt.Sprintf("%s-%s.png", sanitizeLabel(label), uuid.NewString()[:8])
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.Wrap(err, errors.PersistenceFailed, "failed to write screenshot")
	}
	return path, nil
}

// sanitizeLabel reduces a free-form label to a safe filename prefix.
func sanitizeLabel(label string) string {
	if label == "" {
		return "screenshot"
	}

	var b strings.Builder
	for _, ch := range strings.ToLower(label) {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '-', ch == '_':
			b.WriteRune(ch)
		case ch == ' ' || ch == '/' || ch == '.':
			b.WriteRune('-')
		}
	}

	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "screenshot"
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}
