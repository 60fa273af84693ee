package appdir

import (
	"errors"
	"fmt"
	"os"
)

const gitignoreContent = "nanobanana.log\nimages/\n"

// EnsureStructure creates the root directory and its .gitignore when they
// are missing. It is idempotent and never overwrites an existing file.
func EnsureStructure(d Dir) error {
	if err := os.MkdirAll(d.Root(), 0o750); err != nil {
		return fmt.Errorf("appdir: create root: %w", err)
	}

	if err := writeIfMissing(d.GitignorePath(), []byte(gitignoreContent)); err != nil {
		return fmt.Errorf("appdir: gitignore: %w", err)
	}

	return nil
}

// Bootstrap lays out the directory and writes configYAML as its config file
// unless one already exists.
func Bootstrap(d Dir, configYAML []byte) error {
	if err := EnsureStructure(d); err != nil {
		return err
	}

	if err := writeIfMissing(d.ConfigPath(), configYAML); err != nil {
		return fmt.Errorf("appdir: config: %w", err)
	}

	return nil
}

func writeIfMissing(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}
