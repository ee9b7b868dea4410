// Package assets manages the per-domain file tree backing templates and
// uploaded files.
package assets

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // asset metadata sniffing
	_ "image/jpeg" // asset metadata sniffing
	_ "image/png"  // asset metadata sniffing
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp" // WebP decode support

	"github.com/brightsend/mailform/internal/config"
	"github.com/brightsend/mailform/internal/model"
	"github.com/brightsend/mailform/internal/pkg/logger"
)

// ErrNotFound covers every asset-path failure: missing files, unsafe
// segments, and escapes from the domain root. Traversal attempts are
// indistinguishable from misses so probing leaks nothing.
var ErrNotFound = errors.New("asset not found")

// Store is the filesystem tree of per-domain assets, with a staging
// directory for uploads in flight.
type Store struct {
	root    string
	staging string
	mirror  *S3Mirror
}

// NewStore creates the asset store, making the root and staging
// directories as needed.
func NewStore(cfg config.AssetsConfig, mirror *S3Mirror) (*Store, error) {
	for _, dir := range []string{cfg.Root, cfg.StagingDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return &Store{root: cfg.Root, staging: cfg.StagingDir, mirror: mirror}, nil
}

// Mirror returns the configured S3 mirror, nil when mirroring is off.
func (s *Store) Mirror() *S3Mirror { return s.mirror }

// Resolve maps (domain, relative path) to an absolute filesystem path,
// enforcing the segment pattern and post-symlink containment in the
// domain's directory.
func (s *Store) Resolve(domain, relPath string) (string, error) {
	if !model.ValidDomainName(domain) || !model.ValidRelPath(relPath) {
		return "", ErrNotFound
	}

	domainRoot, err := filepath.Abs(filepath.Join(s.root, domain))
	if err != nil {
		return "", ErrNotFound
	}
	full := filepath.Join(domainRoot, filepath.FromSlash(relPath))

	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", ErrNotFound
	}
	resolvedRoot, err := filepath.EvalSymlinks(domainRoot)
	if err != nil {
		return "", ErrNotFound
	}
	if resolved != resolvedRoot && !strings.HasPrefix(resolved, resolvedRoot+string(os.PathSeparator)) {
		return "", ErrNotFound
	}

	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return resolved, nil
}

// Stage writes an upload into the staging directory and returns its path.
func (s *Store) Stage(filename string, r io.Reader) (string, error) {
	if !model.ValidPathSegment(filename) {
		return "", fmt.Errorf("unsafe filename %q", filename)
	}

	f, err := os.CreateTemp(s.staging, "upload-*-"+filename)
	if err != nil {
		return "", fmt.Errorf("staging upload: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return f.Name(), nil
}

// Commit moves a staged file into the domain tree under relPath, by rename
// when possible and copy+delete across filesystems. Collisions are
// last-write-wins; filenames are already sanitized so that is acceptable.
func (s *Store) Commit(domain, relPath, stagedPath string) error {
	if !model.ValidDomainName(domain) {
		return fmt.Errorf("invalid domain %q", domain)
	}
	if !model.ValidRelPath(relPath) {
		return fmt.Errorf("unsafe asset path %q", relPath)
	}

	dest := filepath.Join(s.root, domain, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating asset dir: %w", err)
	}

	if err := os.Rename(stagedPath, dest); err == nil {
		return nil
	}

	// Cross-device: copy then delete. Staged-file cleanup is best-effort.
	src, err := os.Open(stagedPath)
	if err != nil {
		return fmt.Errorf("opening staged file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating asset: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dest)
		return fmt.Errorf("copying asset: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("closing asset: %w", err)
	}
	if err := os.Remove(stagedPath); err != nil {
		logger.Warn("staged upload cleanup failed", "path", stagedPath, "error", err.Error())
	}
	return nil
}

// WriteTemplate stores a rendered template body under the domain's
// templates/ subtree, mirroring the generated filename.
func (s *Store) WriteTemplate(domain, filename, body string) error {
	if !model.ValidDomainName(domain) || !model.ValidRelPath(filename) {
		return fmt.Errorf("unsafe template path %s/%s", domain, filename)
	}
	dest := filepath.Join(s.root, domain, "templates", filepath.FromSlash(filename))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(body), 0o644)
}

// ImageInfo describes a sniffed image upload.
type ImageInfo struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// SniffImage reports dimensions for image uploads (png, jpeg, gif, webp).
// Non-image files return nil without error.
func SniffImage(r io.Reader) *ImageInfo {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return nil
	}
	return &ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}
}
