package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/models"
)

// LocalBackend stores files under a directory of the local filesystem.
type LocalBackend struct {
	root   string
	logger logger.Logger
}

func NewLocalBackend(root string, log logger.Logger) (*LocalBackend, error) {
	if root == "" {
		root = "./data/storage"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.NewInvalidConfigurationError(fmt.Sprintf("invalid local storage path %q: %v", root, err))
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, apperrors.NewInternalError("failed to create local storage root", err)
	}
	return &LocalBackend{
		root:   abs,
		logger: log.WithFields(map[string]interface{}{"provider": "local"}),
	}, nil
}

func (b *LocalBackend) Provider() string { return "local" }

// Root is the absolute storage directory.
func (b *LocalBackend) Root() string { return b.root }

// resolve maps a storage path onto the filesystem, rejecting escapes from the root.
func (b *LocalBackend) resolve(p string) (string, error) {
	rel := strings.TrimLeft(filepath.ToSlash(p), "/")
	full := filepath.Join(b.root, filepath.FromSlash(rel))

	r, err := filepath.Rel(b.root, full)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", apperrors.NewInvalidPathError(p)
	}
	return full, nil
}

func (b *LocalBackend) relative(full string) string {
	r, err := filepath.Rel(b.root, full)
	if err != nil || r == "." {
		return ""
	}
	return filepath.ToSlash(r)
}

func (b *LocalBackend) UploadFile(ctx context.Context, localPath, destPath string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.NewNotFoundError("File", localPath)
		}
		return "", apperrors.NewInternalError("failed to open upload source", err)
	}
	defer src.Close()

	return b.UploadStream(ctx, src, destPath, "")
}

func (b *LocalBackend) UploadStream(ctx context.Context, r io.Reader, destPath, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dest, err := b.resolve(destPath)
	if err != nil {
		return "", err
	}
	if dest == b.root {
		return "", apperrors.NewInvalidPathError(destPath)
	}

	if err := writeFile(dest, r); err != nil {
		return "", apperrors.NewInternalError("failed to write file to local storage", err)
	}

	b.logger.Debug("File stored", map[string]interface{}{
		"path": b.relative(dest),
	})
	return "file://" + dest, nil
}

func (b *LocalBackend) DownloadFile(ctx context.Context, srcPath, localDest string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := b.resolve(srcPath)
	if err != nil {
		return "", err
	}

	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.NewNotFoundError("File", srcPath)
		}
		return "", apperrors.NewInternalError("failed to open stored file", err)
	}
	defer f.Close()

	if err := writeFile(localDest, f); err != nil {
		return "", apperrors.NewInternalError("failed to copy stored file", err)
	}
	return localDest, nil
}

func (b *LocalBackend) FileURL(ctx context.Context, p string) (string, error) {
	full, err := b.resolve(p)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.NewNotFoundError("File", p)
		}
		return "", apperrors.NewInternalError("failed to stat stored file", err)
	}
	return "file://" + full, nil
}

func (b *LocalBackend) ListFiles(ctx context.Context, folder string) ([]models.StorageEntry, error) {
	dir, err := b.resolve(folder)
	if err != nil {
		return nil, err
	}

	items, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("Folder", folder)
		}
		return nil, apperrors.NewInternalError("failed to list local folder", err)
	}

	entries := make([]models.StorageEntry, 0, len(items))
	for _, item := range items {
		if strings.HasPrefix(item.Name(), ".") {
			continue
		}
		info, err := item.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}

		full := filepath.Join(dir, item.Name())
		entry := models.StorageEntry{
			Name:     item.Name(),
			Path:     b.relative(full),
			Type:     models.EntryTypeFile,
			Modified: info.ModTime().UTC().Format(time.RFC3339),
		}
		if item.IsDir() {
			entry.Type = models.EntryTypeFolder
		} else {
			entry.Size = info.Size()
			entry.ContentType = DetectContentType(full)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (b *LocalBackend) DeleteFile(ctx context.Context, p string) (bool, error) {
	full, err := b.resolve(p)
	if err != nil {
		return false, err
	}
	if full == b.root {
		return false, apperrors.NewInvalidPathError(p)
	}

	info, err := os.Lstat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, apperrors.NewInternalError("failed to stat stored file", err)
	}

	if info.IsDir() {
		err = os.RemoveAll(full)
	} else {
		err = os.Remove(full)
	}
	if err != nil {
		return false, apperrors.NewInternalError("failed to delete stored file", err)
	}

	b.logger.Info("Deleted from local storage", map[string]interface{}{
		"path":   b.relative(full),
		"folder": info.IsDir(),
	})
	return true, nil
}

func (b *LocalBackend) CreateFolder(ctx context.Context, p string) (string, error) {
	full, err := b.resolve(p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return "", apperrors.NewInternalError("failed to create local folder", err)
	}
	return b.relative(full), nil
}

func (b *LocalBackend) FolderExists(ctx context.Context, p string) (bool, error) {
	full, err := b.resolve(p)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, apperrors.NewInternalError("failed to stat local folder", err)
	}
	return info.IsDir(), nil
}

// writeFile streams r into path, creating parent directories.
func writeFile(p string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// joinPath joins storage path segments with forward slashes.
func joinPath(elem ...string) string {
	return cleanPath(path.Join(elem...))
}
