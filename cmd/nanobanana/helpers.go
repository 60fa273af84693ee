package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/germanamz/nanobanana/pkg/chats/content"
	"github.com/germanamz/nanobanana/pkg/chats/turn"
	"github.com/joho/godotenv"
)

// maxAttachmentSize bounds files read by /attach.
const maxAttachmentSize = 20 << 20

// thinkingMessages are displayed while waiting for the first fragment.
var thinkingMessages = []string{
	"Peeling the banana...",
	"Mixing pigments...",
	"Sketching outlines...",
	"Consulting the muse...",
	"Warming up the easel...",
	"Counting pixels...",
	"Squinting at the canvas...",
	"Choosing a palette...",
}

// mdRenderer renders markdown to terminal-formatted output.
var mdRenderer *glamour.TermRenderer

func initMarkdownRenderer(width int) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return
	}
	mdRenderer = r
}

// renderMarkdown converts markdown text to terminal-formatted output.
func renderMarkdown(text string) string {
	if mdRenderer == nil {
		return text
	}
	out, err := mdRenderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// truncate returns s shortened to at most n runes, with "..." appended if
// truncated. Newlines are replaced with spaces for single-line display.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// fmtTokens formats a token count for display, using k/M suffixes.
func fmtTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// fmtDuration formats a duration for display.
func fmtDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, sec)
}

// fmtBytes formats a byte size using KB/MB suffixes.
func fmtBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func randomThinkingMessage() string {
	return thinkingMessages[rand.IntN(len(thinkingMessages))] //nolint:gosec // cosmetic randomness
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// readAttachment loads a file as an inline part. The MIME type is sniffed
// from the content.
func readAttachment(path string) (content.Inline, error) {
	info, err := os.Stat(path)
	if err != nil {
		return content.Inline{}, fmt.Errorf("attach: %w", err)
	}
	if info.IsDir() {
		return content.Inline{}, fmt.Errorf("attach: %s is a directory", path)
	}
	if info.Size() > maxAttachmentSize {
		return content.Inline{}, fmt.Errorf("attach: %s is larger than %s", path, fmtBytes(maxAttachmentSize))
	}

	data, err := os.ReadFile(path) //nolint:gosec // user-selected file
	if err != nil {
		return content.Inline{}, fmt.Errorf("attach: %w", err)
	}
	if len(data) == 0 {
		return content.Inline{}, fmt.Errorf("attach: %s is empty", path)
	}

	mediaType := http.DetectContentType(data)
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}

	return content.NewInline(mediaType, data), nil
}

// saveImages writes every non-thought inline part of t into dir and returns
// the created paths. Files are named <prefix>-<k><ext>.
func saveImages(t turn.Turn, dir, prefix string) ([]string, error) {
	var imgs []content.Inline
	for _, a := range t.Attachments() {
		if !a.Thought {
			imgs = append(imgs, a)
		}
	}
	if len(imgs) == 0 {
		return nil, errors.New("save: turn has no images")
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}

	paths := make([]string, 0, len(imgs))
	for k, img := range imgs {
		data, err := img.Bytes()
		if err != nil {
			return paths, fmt.Errorf("save: %w", err)
		}

		path := filepath.Join(dir, fmt.Sprintf("%s-%d%s", prefix, k+1, extensionFor(img.MediaType)))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return paths, fmt.Errorf("save: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
