package editor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const defaultFileMode os.FileMode = 0644

// stagedWrite is a fully written and synced temporary file waiting to be
// renamed over its target.
type stagedWrite struct {
	fs     afero.Fs
	tmp    string
	target string
	// done runs after a successful rename
	done func()
}

// stageFile writes data to a hidden temporary file next to path. The target
// is not touched until commit. The directory must already exist.
func stageFile(afs afero.Fs, path string, data []byte) (*stagedWrite, error) {
	dir := filepath.Dir(path)

	mode := defaultFileMode
	if info, err := afs.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tempFile, err := afero.TempFile(afs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create temporary file in '%s': %w", ErrIO, dir, err)
	}
	tempPath := tempFile.Name()

	fail := func(msg string, err error) (*stagedWrite, error) {
		_ = afs.Remove(tempPath)
		return nil, fmt.Errorf("%w: %s '%s': %w", ErrIO, msg, tempPath, err)
	}

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fail("failed to write temporary file", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fail("failed to sync temporary file", err)
	}

	if err := tempFile.Close(); err != nil {
		return fail("failed to close temporary file", err)
	}

	if err := afs.Chmod(tempPath, mode); err != nil {
		return fail("failed to set permissions on", err)
	}

	return &stagedWrite{fs: afs, tmp: tempPath, target: path}, nil
}

// commit renames the temporary file over the target.
func (s *stagedWrite) commit() error {
	if err := s.fs.Rename(s.tmp, s.target); err != nil {
		s.discard()
		return fmt.Errorf("%w: failed to rename temporary file to '%s': %w", ErrIO, s.target, err)
	}
	if s.done != nil {
		s.done()
	}
	return nil
}

// discard removes the temporary file.
func (s *stagedWrite) discard() {
	_ = s.fs.Remove(s.tmp)
}
