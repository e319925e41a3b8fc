//go:build !unix

package util

import (
	"fmt"
	"os"
)

// CheckAccess probes dir by listing it and creating a throwaway file.
func CheckAccess(dir string) error {
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("directory %q is not writable: %w", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	if _, err := os.ReadDir(dir); err != nil {
		return fmt.Errorf("directory %q is not readable: %w", dir, err)
	}
	return nil
}
