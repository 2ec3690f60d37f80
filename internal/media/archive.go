package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtension is used when an upload has no usable file extension.
const DefaultExtension = ".webm"

// Archive stores raw uploads and their normalized copies under one directory.
type Archive struct {
	dir string
}

func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	return &Archive{dir: dir}, nil
}

func (a *Archive) Dir() string { return a.dir }

// Save writes an upload as <id><ext> and returns its path.
func (a *Archive) Save(id, filename string, r io.Reader) (string, error) {
	path := filepath.Join(a.dir, id+uploadExtension(filename))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close upload: %w", err)
	}
	return path, nil
}

// NormalizedPath is where the 16 kHz WAV for a raw upload is written.
// It never equals rawPath, even when the upload already is a .wav.
func NormalizedPath(rawPath string) string {
	stem := strings.TrimSuffix(rawPath, filepath.Ext(rawPath))
	return stem + ".16k.wav"
}

func uploadExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 8 {
		return DefaultExtension
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return DefaultExtension
		}
	}
	return ext
}
