package main

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/germanamz/nanobanana/pkg/chats/content"
	"github.com/germanamz/nanobanana/pkg/chats/role"
	"github.com/germanamz/nanobanana/pkg/chats/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestFmtTokens(t *testing.T) {
	tests := []struct {
		input    int
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0k"},
		{15000, "15.0k"},
		{1_000_000, "1.0M"},
		{3_400_000, "3.4M"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, fmtTokens(tt.input), "fmtTokens(%d)", tt.input)
	}
}

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{100 * time.Millisecond, "0.1s"},
		{2 * time.Second, "2.0s"},
		{65 * time.Second, "1m 5s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, fmtDuration(tt.input), "fmtDuration(%v)", tt.input)
	}
}

func TestFmtBytes(t *testing.T) {
	assert.Equal(t, "512 B", fmtBytes(512))
	assert.Equal(t, "1.5 KB", fmtBytes(1536))
	assert.Equal(t, "2.0 MB", fmtBytes(2<<20))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hel...", truncate("hello world", 3))
	assert.Equal(t, "hello world", truncate("hello\nworld", 20))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a.com", "b.com"}, splitList(" a.com, ,b.com "))
	assert.Nil(t, splitList(""))
}

func TestRandomThinkingMessage(t *testing.T) {
	assert.True(t, slices.Contains(thinkingMessages, randomThinkingMessage()))
}

func TestLoadDotEnv_Missing(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NANOBANANA_DOTENV_TEST=yes\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("NANOBANANA_DOTENV_TEST") })

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "yes", os.Getenv("NANOBANANA_DOTENV_TEST"))
}

func TestReadAttachment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))

	in, err := readAttachment(path)
	require.NoError(t, err)

	assert.Equal(t, "image/png", in.MediaType)
	assert.NoError(t, in.Validate())
	data, err := in.Bytes()
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestReadAttachment_StripsParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain words"), 0o600))

	in, err := readAttachment(path)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", in.MediaType)
}

func TestReadAttachment_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := readAttachment(filepath.Join(dir, "missing.png"))
	assert.ErrorContains(t, err, "attach:")

	_, err = readAttachment(dir)
	assert.ErrorContains(t, err, "is a directory")

	empty := filepath.Join(dir, "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = readAttachment(empty)
	assert.ErrorContains(t, err, "is empty")
}

func TestSaveImages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	tr := turn.New(role.Model,
		content.Text{Text: "here"},
		content.Inline{MediaType: "image/png", Data: "c2tldGNo", Thought: true},
		content.NewInline("image/png", pngHeader),
		content.NewInline("image/jpeg", []byte("jpeg")),
	)

	paths, err := saveImages(tr, dir, "turn2")
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "turn2-1.png"),
		filepath.Join(dir, "turn2-2.jpg"),
	}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestSaveImages_NoImages(t *testing.T) {
	_, err := saveImages(turn.New(role.Model, content.Text{Text: "x"}), t.TempDir(), "p")
	assert.EqualError(t, err, "save: turn has no images")
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".png", extensionFor("image/png"))
	assert.Equal(t, ".webp", extensionFor("image/webp"))
	assert.Equal(t, ".bin", extensionFor("application/x-nanobanana-unknown"))
}
