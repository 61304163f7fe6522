package storefs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-invoice/invoice"
)

// Store saves exported invoices to the filesystem. Each artifact is written
// atomically and carries a sidecar .meta.json file.
type Store struct {
	Root string
	Now  func() time.Time
}

var _ invoice.ArtifactStore = (*Store)(nil)

// NewStore creates a filesystem-backed artifact store.
func NewStore(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

// Put stores an artifact on disk.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta invoice.ArtifactMeta) (invoice.ArtifactRef, error) {
	_ = ctx
	if s == nil {
		return invoice.ArtifactRef{}, invoice.NewError(invoice.KindInternal, "store is nil", nil)
	}
	if s.Root == "" {
		return invoice.ArtifactRef{}, invoice.NewError(invoice.KindValidation, "store root is required", nil)
	}
	if key == "" {
		return invoice.ArtifactRef{}, invoice.NewError(invoice.KindValidation, "artifact key is required", nil)
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return invoice.ArtifactRef{}, err
	}

	dir := filepath.Dir(pathOnDisk)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return invoice.ArtifactRef{}, err
	}

	tmp, err := os.CreateTemp(dir, ".invoice-*")
	if err != nil {
		return invoice.ArtifactRef{}, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return invoice.ArtifactRef{}, err
	}
	if err := tmp.Sync(); err != nil {
		return invoice.ArtifactRef{}, err
	}
	if err := tmp.Close(); err != nil {
		return invoice.ArtifactRef{}, err
	}

	if err := os.Rename(tmp.Name(), pathOnDisk); err != nil {
		return invoice.ArtifactRef{}, err
	}

	meta.Size = size
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(pathOnDisk))
	}

	if err := s.writeMeta(pathOnDisk, meta); err != nil {
		return invoice.ArtifactRef{}, err
	}

	return invoice.ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads an artifact from disk.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, invoice.ArtifactMeta, error) {
	_ = ctx
	if s == nil {
		return nil, invoice.ArtifactMeta{}, invoice.NewError(invoice.KindInternal, "store is nil", nil)
	}
	if s.Root == "" {
		return nil, invoice.ArtifactMeta{}, invoice.NewError(invoice.KindValidation, "store root is required", nil)
	}
	if key == "" {
		return nil, invoice.ArtifactMeta{}, invoice.NewError(invoice.KindValidation, "artifact key is required", nil)
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return nil, invoice.ArtifactMeta{}, err
	}

	file, err := os.Open(pathOnDisk)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, invoice.ArtifactMeta{}, invoice.NewError(invoice.KindNotFound, fmt.Sprintf("artifact %q not found", key), err)
		}
		return nil, invoice.ArtifactMeta{}, err
	}

	meta := s.readMeta(pathOnDisk)
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(pathOnDisk))
	}
	if meta.Size == 0 {
		if info, err := file.Stat(); err == nil {
			meta.Size = info.Size()
			if meta.CreatedAt.IsZero() {
				meta.CreatedAt = info.ModTime()
			}
		}
	}

	return file, meta, nil
}

// Delete removes an artifact from disk.
func (s *Store) Delete(ctx context.Context, key string) error {
	_ = ctx
	if s == nil {
		return invoice.NewError(invoice.KindInternal, "store is nil", nil)
	}
	if s.Root == "" {
		return invoice.NewError(invoice.KindValidation, "store root is required", nil)
	}
	if key == "" {
		return invoice.NewError(invoice.KindValidation, "artifact key is required", nil)
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	_ = os.Remove(pathOnDisk)
	_ = os.Remove(metaPath(pathOnDisk))
	return nil
}

// Path returns the on-disk location of an artifact key.
func (s *Store) Path(key string) (string, error) {
	if s == nil {
		return "", invoice.NewError(invoice.KindInternal, "store is nil", nil)
	}
	return s.resolvePath(key)
}

func (s *Store) resolvePath(key string) (string, error) {
	clean := path.Clean("/" + key)
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" || rel == "." {
		return "", invoice.NewError(invoice.KindValidation, "invalid artifact key", nil)
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) && target != root {
		return "", invoice.NewError(invoice.KindValidation, "artifact key escapes root", nil)
	}
	return target, nil
}

func (s *Store) writeMeta(pathOnDisk string, meta invoice.ArtifactMeta) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	dir := filepath.Dir(pathOnDisk)
	tmp, err := os.CreateTemp(dir, ".meta-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(payload); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), metaPath(pathOnDisk))
}

func (s *Store) readMeta(pathOnDisk string) invoice.ArtifactMeta {
	data, err := os.ReadFile(metaPath(pathOnDisk))
	if err != nil {
		return invoice.ArtifactMeta{}
	}
	var meta invoice.ArtifactMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return invoice.ArtifactMeta{}
	}
	return meta
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func metaPath(pathOnDisk string) string {
	return pathOnDisk + ".meta.json"
}
