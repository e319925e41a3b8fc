//go:build unix

package util

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// CheckAccess reports an error unless dir is readable and writable by the
// calling process.
func CheckAccess(dir string) error {
	if err := unix.Access(dir, unix.W_OK); err != nil {
		return fmt.Errorf("directory %q is not writable: %w", dir, err)
	}
	if err := unix.Access(dir, unix.R_OK|unix.X_OK); err != nil {
		return fmt.Errorf("directory %q is not readable: %w", dir, err)
	}
	return nil
}
