package commands

import (
	"os"
	"path/filepath"

	"github.com/amiup/amiup/pkg/errors"
)

// ensureDirectories creates the local bookkeeping directories. The journal
// path is a file; the FSM path is a directory.
func ensureDirectories(dbPath, fsmDBPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return errors.Wrap(err, "failed to create database directory")
	}

	if fsmDBPath != "" {
		if err := os.MkdirAll(fsmDBPath, 0755); err != nil {
			return errors.Wrap(err, "failed to create FSM directory")
		}
	}

	return nil
}
