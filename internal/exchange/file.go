package exchange

import (
	"io"
	"os"
	"path/filepath"

	"github.com/ldi/tasker/pkg/models"
)

// WriteFile encodes tasks into path atomically using a temporary file in
// the same directory.
func WriteFile(path string, format Format, tasks []*models.Task) error {
	return writeAtomic(path, func(w io.Writer) error {
		return Encode(w, format, tasks)
	})
}

// ReadFile decodes a JSON task file.
func ReadFile(path string) ([]*models.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.SerializationErr("failed to open task file", err)
	}
	defer f.Close()

	return DecodeJSON(f)
}

func writeAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return models.StorageErr("failed to create export directory", err)
	}

	tempFile, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return models.StorageErr("failed to create temp file", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	if err := write(tempFile); err != nil {
		return err
	}

	if err := tempFile.Sync(); err != nil {
		return models.StorageErr("failed to sync temp file", err)
	}

	if err := tempFile.Close(); err != nil {
		return models.StorageErr("failed to close temp file", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return models.StorageErr("failed to rename temp file", err)
	}

	return nil
}
