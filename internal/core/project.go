package core

import (
	"os"
	"path/filepath"
)

// ResolvePath expands a leading ~ and returns an absolute path, so flags and
// config-file values can be given in either form.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}
