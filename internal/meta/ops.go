package meta

import (
	"context"
	"sync"

	"github.com/edmstore/rasterstore/internal/rasterr"
)

// MetadataOps is the single trait unifying the transactional and
// non-transactional metadata-store variants, per SPEC_FULL.md §9's
// resolution of the source's two-layer mixin hierarchy. A non-
// transactional caller uses an implementation whose session is always
// "none"; WithSession returns a variant carrying a session token that
// threads through every op, so the same method set serves both shapes
// without a duplicated transactional trait.
type MetadataOps interface {
	CreateBand(ctx context.Context, md BandMetadata) error
	CreateImage(ctx context.Context, md ImageMetadata) error
	GetBand(ctx context.Context, path string) (BandMetadata, error)
	GetImage(ctx context.Context, path string) (ImageMetadata, error)
	Exists(ctx context.Context, path string) (bool, error)

	// DeleteBands and DeleteImages delete by membership ($in semantics),
	// per SPEC_FULL.md Open Question #1: the source's
	// `type(x) is List[str]` check is always false and its list branch is
	// dead code; this resolves it as intended, a real multi-path delete.
	// DeleteImages cascades: every band referenced by a deleted image is
	// deleted too.
	DeleteBands(ctx context.Context, paths []string) error
	DeleteImages(ctx context.Context, paths []string) error

	// WithSession returns a MetadataOps bound to a transaction session;
	// ops issued through it commit or abort together with the scope that
	// created the session (see Transaction).
	WithSession(session string) MetadataOps
}

// InMemory is a thread-safe, map-backed MetadataOps implementation: the
// default collaborator this repo wires in place of a production document
// database (explicitly out of scope per spec.md §1). It does not actually
// stage writes per-session -- every write is immediately visible -- so
// Transaction's abort-on-failure guarantee is a no-op here; a real
// document-database client attaching at this interface would replace this
// type, not MetadataOps itself.
type InMemory struct {
	mu      *sync.RWMutex // shared with every WithSession view
	bands   map[string]BandMetadata
	images  map[string]ImageMetadata
	session string
}

// NewInMemory returns an empty, non-transactional InMemory store.
func NewInMemory() *InMemory {
	return &InMemory{
		mu:     &sync.RWMutex{},
		bands:  make(map[string]BandMetadata),
		images: make(map[string]ImageMetadata),
	}
}

func (m *InMemory) WithSession(session string) MetadataOps {
	return &InMemory{mu: m.mu, bands: m.bands, images: m.images, session: session}
}

// Transaction runs fn against a session-bound MetadataOps view of m. Per
// spec.md §6's transaction() contract, ops inside fn are meant to commit
// together on normal return and abort together on error; see the InMemory
// doc comment for why that guarantee is vacuous for this particular
// implementation.
func Transaction(ctx context.Context, m MetadataOps, session string, fn func(context.Context, MetadataOps) error) error {
	return fn(ctx, m.WithSession(session))
}

func (m *InMemory) CreateBand(ctx context.Context, md BandMetadata) error {
	path, err := BandPath(md.BandPath)
	if err != nil {
		return err
	}
	if err := validateBand(md); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bands[path]; exists {
		return rasterr.NewValidationError("band %q already exists", path)
	}
	md.BandPath = path
	m.bands[path] = md
	return nil
}

func (m *InMemory) CreateImage(ctx context.Context, md ImageMetadata) error {
	if len(md.Bands) == 0 {
		return rasterr.NewValidationError("image %q has no bands", md.ImagePath)
	}
	path, err := ImagePath(md.ImagePath)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.images[path]; exists {
		return rasterr.NewValidationError("image %q already exists", path)
	}
	for name, bandPath := range md.Bands {
		normalized, err := BandPath(bandPath)
		if err != nil {
			return err
		}
		if _, ok := m.bands[normalized]; !ok {
			return rasterr.NewNotFoundError("no such band or image: %s (referenced as %q in image %q)", normalized, name, md.ImagePath)
		}
	}
	md.ImagePath = path
	m.images[path] = md
	return nil
}

func (m *InMemory) GetBand(ctx context.Context, path string) (BandMetadata, error) {
	normalized, err := BandPath(path)
	if err != nil {
		return BandMetadata{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	md, ok := m.bands[normalized]
	if !ok {
		return BandMetadata{}, rasterr.NewNotFoundError("no such band or image: %s", normalized)
	}
	return md, nil
}

func (m *InMemory) GetImage(ctx context.Context, path string) (ImageMetadata, error) {
	normalized, err := ImagePath(path)
	if err != nil {
		return ImageMetadata{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	md, ok := m.images[normalized]
	if !ok {
		return ImageMetadata{}, rasterr.NewNotFoundError("no such band or image: %s", normalized)
	}
	return md, nil
}

func (m *InMemory) Exists(ctx context.Context, path string) (bool, error) {
	p, err := ParsePath(path)
	if err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p.Ext == ExtImage {
		normalized, _ := ImagePath(path)
		_, ok := m.images[normalized]
		return ok, nil
	}
	normalized, _ := BandPath(path)
	_, ok := m.bands[normalized]
	return ok, nil
}

func (m *InMemory) DeleteBands(ctx context.Context, paths []string) error {
	normalized := make([]string, 0, len(paths))
	for _, p := range paths {
		np, err := BandPath(p)
		if err != nil {
			return err
		}
		normalized = append(normalized, np)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range normalized {
		delete(m.bands, p)
	}
	return nil
}

func (m *InMemory) DeleteImages(ctx context.Context, paths []string) error {
	normalized := make([]string, 0, len(paths))
	for _, p := range paths {
		np, err := ImagePath(p)
		if err != nil {
			return err
		}
		normalized = append(normalized, np)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range normalized {
		img, ok := m.images[p]
		if !ok {
			continue
		}
		for _, bandPath := range img.Bands {
			if np, err := BandPath(bandPath); err == nil {
				delete(m.bands, np)
			}
		}
		delete(m.images, p)
	}
	return nil
}

func validateBand(md BandMetadata) error {
	switch md.TileSize {
	case 256, 512, 1024, 2048:
	default:
		return rasterr.NewValidationError("tile size must be one of 256/512/1024/2048, got %d", md.TileSize)
	}
	if len(md.Factors) == 0 || md.Factors[0] != 1 {
		return rasterr.NewValidationError("pyramid factor table must start with 1, got %v", md.Factors)
	}
	if md.Shape[0] <= 0 || md.Shape[1] <= 0 {
		return rasterr.NewValidationError("band shape must be positive, got %v", md.Shape)
	}
	return nil
}

var _ MetadataOps = (*InMemory)(nil)
