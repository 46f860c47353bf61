package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

const faceSuffix = "_Face"

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Store is the on-disk gallery: one directory per identity under root, one
// image per pose named {LABEL}_{Pose}_Face.png.
type Store struct {
	root     string
	logger   *slog.Logger
	mu       sync.Mutex
	revision atomic.Uint64
}

func NewStore(root string, logger *slog.Logger) *Store {
	return &Store{root: root, logger: logger.With("component", "gallery")}
}

func (s *Store) Root() string {
	return s.root
}

// Revision increases every time the store writes to disk. A scan taken at
// revision r is current as long as Revision() == r.
func (s *Store) Revision() uint64 {
	return s.revision.Load()
}

// Scan enumerates the identities on disk. A missing root yields an empty
// gallery. Directories holding no usable image are skipped.
func (s *Store) Scan(ctx context.Context) (*Gallery, error) {
	rev := s.revision.Load()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(nil, rev), nil
		}
		return nil, domain.ErrGalleryIO.WithError(err)
	}

	identities := make([]domain.Identity, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		id, err := s.scanIdentity(entry.Name())
		if err != nil {
			s.logger.Warn("skipping unreadable identity", "label", entry.Name(), "error", err)
			continue
		}
		if len(id.References) == 0 {
			s.logger.Debug("skipping identity without reference images", "label", entry.Name())
			continue
		}
		identities = append(identities, id)
	}

	sort.SliceStable(identities, func(i, j int) bool {
		return identities[i].Label < identities[j].Label
	})

	return New(identities, rev), nil
}

func (s *Store) scanIdentity(dir string) (domain.Identity, error) {
	label := NormalizeLabel(dir)
	entries, err := os.ReadDir(filepath.Join(s.root, dir))
	if err != nil {
		return domain.Identity{}, domain.ErrGalleryIO.WithError(err)
	}

	id := domain.Identity{Label: label}
	seen := make(map[domain.Pose]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pose, ok := parseFileName(entry.Name())
		if !ok || seen[pose] {
			continue
		}
		seen[pose] = true

		ref := domain.ImageRef{
			Label: label,
			Pose:  pose,
			Path:  filepath.Join(s.root, dir, entry.Name()),
		}
		if info, err := entry.Info(); err == nil {
			ref.CapturedAt = info.ModTime()
		}
		id.References = append(id.References, ref)
	}

	sort.Slice(id.References, func(i, j int) bool {
		return domain.PoseIndex(id.References[i].Pose) < domain.PoseIndex(id.References[j].Pose)
	})
	return id, nil
}

// parseFileName extracts the pose from {LABEL}_{Pose}_Face.{png,jpg,jpeg}.
func parseFileName(name string) (domain.Pose, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if !imageExtensions[ext] {
		return "", false
	}
	base, ok := strings.CutSuffix(strings.TrimSuffix(name, filepath.Ext(name)), faceSuffix)
	if !ok {
		return "", false
	}
	i := strings.LastIndex(base, "_")
	if i <= 0 {
		return "", false
	}
	pose := domain.Pose(base[i+1:])
	if domain.PoseIndex(pose) < 0 {
		return "", false
	}
	return pose, true
}

// FileName is the on-disk name of a reference image.
func FileName(label string, pose domain.Pose) string {
	return fmt.Sprintf("%s_%s%s.png", label, pose, faceSuffix)
}

func validLabel(label string) bool {
	return label != "" && label != "." && label != ".." && !strings.ContainsAny(label, `/\`)
}

// EnsureIdentity creates the identity directory if it does not exist and
// returns the normalized label.
func (s *Store) EnsureIdentity(name string) (string, error) {
	label := NormalizeLabel(name)
	if !validLabel(label) {
		return "", domain.ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, label)
	if _, err := os.Stat(dir); err == nil {
		return label, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domain.ErrGalleryIO.WithError(err)
	}
	s.revision.Add(1)
	s.logger.Info("identity created", "label", label)
	return label, nil
}

// AddReference stores frame as the image for pose, replacing any previous
// image for the same pose, whatever its extension. The image is re-encoded
// as PNG and written atomically.
func (s *Store) AddReference(ctx context.Context, name string, pose domain.Pose, frame domain.Frame) (domain.ImageRef, error) {
	label := NormalizeLabel(name)
	if !validLabel(label) {
		return domain.ImageRef{}, domain.ErrInvalidName
	}
	if domain.PoseIndex(pose) < 0 {
		return domain.ImageRef{}, domain.ErrBadRequest.WithError(fmt.Errorf("unknown pose %q", pose))
	}
	if frame.IsZero() {
		return domain.ImageRef{}, domain.ErrInvalidImage.WithError(errors.New("empty frame"))
	}
	if err := ctx.Err(); err != nil {
		return domain.ImageRef{}, err
	}

	img, _, err := image.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return domain.ImageRef{}, domain.ErrInvalidImage.WithError(err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return domain.ImageRef{}, domain.ErrInvalidImage.WithError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, label)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.ImageRef{}, domain.ErrGalleryIO.WithError(err)
	}

	path := filepath.Join(dir, FileName(label, pose))
	if err := writeFileAtomic(dir, path, buf.Bytes()); err != nil {
		return domain.ImageRef{}, domain.ErrGalleryIO.WithError(err)
	}
	s.revision.Add(1)
	if err := removeOtherImages(dir, pose, filepath.Base(path)); err != nil {
		return domain.ImageRef{}, domain.ErrGalleryIO.WithError(err)
	}

	capturedAt := frame.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	s.logger.Info("reference stored", "label", label, "pose", pose, "bytes", buf.Len())
	return domain.ImageRef{Label: label, Pose: pose, Path: path, CapturedAt: capturedAt}, nil
}

// removeOtherImages deletes every image for pose in dir except keep, so a
// pose never has more than one reference on disk.
func removeOtherImages(dir string, pose domain.Pose, keep string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list identity: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == keep {
			continue
		}
		if p, ok := parseFileName(entry.Name()); !ok || p != pose {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove old reference: %w", err)
		}
	}
	return nil
}

// ReadImage loads the bytes of a reference image.
func (s *Store) ReadImage(ref domain.ImageRef) ([]byte, error) {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, domain.ErrGalleryIO.WithError(err)
	}
	return data, nil
}

func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".reference-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
