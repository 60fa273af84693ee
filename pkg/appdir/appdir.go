// Package appdir owns the path layout of the .nanobanana/ directory: the
// config file, the log file, and the default folder for saved images.
package appdir

import (
	"os"
	"path/filepath"
)

// DefaultRoot is the directory name used when no -dir flag is given.
const DefaultRoot = ".nanobanana"

// LegacyConfig is the config file consulted when the directory has none.
const LegacyConfig = "nanobanana.yaml"

// Dir resolves paths within a .nanobanana/ directory.
type Dir struct {
	root string
}

// New creates a Dir rooted at root, made absolute when possible. No I/O is
// performed.
func New(root string) Dir {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}

	return Dir{root: abs}
}

func (d Dir) Root() string { return d.root }

func (d Dir) ConfigPath() string { return filepath.Join(d.root, "config.yaml") }

func (d Dir) GitignorePath() string { return filepath.Join(d.root, ".gitignore") }

// LogPath is where the CLI writes its structured log. The TUI owns stderr.
func (d Dir) LogPath() string { return filepath.Join(d.root, "nanobanana.log") }

// ImagesDir is the default destination of saved images.
func (d Dir) ImagesDir() string { return filepath.Join(d.root, "images") }

// Exists reports whether the root directory exists on disk.
func (d Dir) Exists() bool {
	info, err := os.Stat(d.root)

	return err == nil && info.IsDir()
}

// ResolveConfig picks the config file to load:
//  1. explicit, when non-empty
//  2. <dir>/config.yaml, when it exists
//  3. nanobanana.yaml in the working directory
func ResolveConfig(explicit string, d Dir) string {
	if explicit != "" {
		return explicit
	}

	if _, err := os.Stat(d.ConfigPath()); err == nil {
		return d.ConfigPath()
	}

	return LegacyConfig
}
