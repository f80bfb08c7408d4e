package searchindex

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads, decodes and validates the index at path. Any decoding or
// validation problem is returned as a *FormatError carrying the path.
func Load(path string, opts ValidateOptions) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading search index %s: %w", path, err)
	}
	idx, err := Decode(data)
	if err == nil {
		err = idx.Validate(opts)
	}
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}
	return idx, nil
}

// WriteFile atomically writes idx to path in the format implied by the file
// extension. It writes to a .tmp sibling, syncs it, and renames on success.
func WriteFile(path string, idx *Index) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating index directory: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(tmpPath)
	}

	bw := bufio.NewWriter(f)
	if err := Encode(bw, idx, FormatForPath(path)); err != nil {
		cleanup()
		return fmt.Errorf("writing index: %w", err)
	}
	if err := bw.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("flushing index: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}
