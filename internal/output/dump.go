package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshotter is the part of a browser session a raw dump needs.
type Snapshotter interface {
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// DumpPage saves the current markup as <slug>.html and a full-page screenshot as <slug>.png
// under dir. It returns the paths written. A failed screenshot still leaves the HTML dump.
func DumpPage(ctx context.Context, s Snapshotter, dir, slug string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dump directory: %w", err)
	}

	var written []string
	markup, err := s.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page markup: %w", err)
	}
	htmlPath := filepath.Join(dir, slug+".html")
	if err := os.WriteFile(htmlPath, []byte(markup), 0o644); err != nil {
		return nil, fmt.Errorf("write html dump: %w", err)
	}
	written = append(written, htmlPath)

	png, err := s.Screenshot(ctx)
	if err != nil {
		return written, fmt.Errorf("take screenshot: %w", err)
	}
	pngPath := filepath.Join(dir, slug+".png")
	if err := os.WriteFile(pngPath, png, 0o644); err != nil {
		return written, fmt.Errorf("write screenshot: %w", err)
	}
	return append(written, pngPath), nil
}
