package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider stores objects under a directory on the local filesystem.
type LocalProvider struct {
	uploadDir  string
	publicPath string
}

// NewLocalProvider creates a provider rooted at uploadDir and served under publicPath.
func NewLocalProvider(uploadDir, publicPath string) *LocalProvider {
	return &LocalProvider{uploadDir: uploadDir, publicPath: publicPath}
}

func (p *LocalProvider) Name() string { return "local" }

// filePerm lets a web server in the owning group serve the upload directory.
const filePerm = 0o640

// Upload writes through a temp file and renames it into place.
func (p *LocalProvider) Upload(_ context.Context, data []byte, fileName, _ string) (UploadResult, error) {
	fullPath, err := p.resolve(fileName)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return UploadResult{}, fmt.Errorf("%w: create directory %s: %v", ErrWrite, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: create temp file: %v", ErrWrite, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return UploadResult{}, fmt.Errorf("%w: write %s: %v", ErrWrite, fileName, err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return UploadResult{}, fmt.Errorf("%w: chmod %s: %v", ErrWrite, fileName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return UploadResult{}, fmt.Errorf("%w: fsync %s: %v", ErrWrite, fileName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return UploadResult{}, fmt.Errorf("%w: close %s: %v", ErrWrite, fileName, err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return UploadResult{}, fmt.Errorf("%w: rename %s: %v", ErrWrite, fileName, err)
	}

	return UploadResult{Path: fileName, URL: p.URL(fileName)}, nil
}

// Delete removes the file; a file that is already gone counts as deleted.
func (p *LocalProvider) Delete(_ context.Context, path string) error {
	fullPath, err := p.resolve(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelete, err)
	}
	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: remove %s: %v", ErrDelete, path, err)
	}
	return nil
}

func (p *LocalProvider) URL(path string) string {
	return strings.TrimRight(p.publicPath, "/") + "/" + strings.TrimLeft(path, "/")
}

func (p *LocalProvider) Exists(_ context.Context, path string) bool {
	fullPath, err := p.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// resolve maps a relative object path into uploadDir, refusing paths that escape it.
func (p *LocalProvider) resolve(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object path %q", name)
	}
	return filepath.Join(p.uploadDir, clean), nil
}
