package document

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/uihost/internal/guest"
)

// SeedOptions says where startup guests come from
type SeedOptions struct {
	Manifest string
	Dir      string
	Pattern  string
	// Fallback is loaded as "demo" when no other guest loads
	Fallback []byte
}

// SeedResult counts seeded documents
type SeedResult struct {
	Loaded int
	Failed int
}

// Seeder loads startup guests into a manager
type Seeder struct {
	manager *Manager
	loader  *guest.Loader
	logger  *zap.Logger
}

// NewSeeder creates a new guest seeder
func NewSeeder(manager *Manager, loader *guest.Loader, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{manager: manager, loader: loader, logger: logger}
}

// Seed creates a document for every manifest entry and every discovered
// file. A guest that fails to load or run is logged and skipped; only an
// unreadable manifest or directory is an error.
func (s *Seeder) Seed(ctx context.Context, opts SeedOptions) (SeedResult, error) {
	var (
		res  SeedResult
		errs []error
	)

	if opts.Manifest != "" {
		m, err := guest.LoadManifest(opts.Manifest)
		if err != nil {
			errs = append(errs, err)
		} else {
			for _, e := range m.Guests {
				s.seed(ctx, e.Name, e.Source, &res)
			}
		}
	}

	if opts.Dir != "" {
		pattern := opts.Pattern
		if pattern == "" {
			pattern = guest.DefaultPattern
		}
		paths, err := guest.Discover(ctx, opts.Dir, pattern)
		if err != nil {
			errs = append(errs, err)
		}
		for _, p := range paths {
			s.seed(ctx, "", p, &res)
		}
	}

	if res.Loaded == 0 && len(opts.Fallback) > 0 {
		src, err := s.loader.FromBytes("demo", opts.Fallback)
		if err == nil {
			_, err = s.manager.Create(ctx, src)
		}
		if err != nil {
			res.Failed++
			errs = append(errs, err)
		} else {
			res.Loaded++
		}
	}

	s.logger.Info("Seeding complete", zap.Int("loaded", res.Loaded), zap.Int("failed", res.Failed))
	return res, errors.Join(errs...)
}

func (s *Seeder) seed(ctx context.Context, name, ref string, res *SeedResult) {
	log := s.logger.With(zap.String("source", ref))
	src, err := s.loader.Load(ctx, ref)
	if err != nil {
		res.Failed++
		log.Warn("Failed to load guest", zap.Error(err))
		return
	}
	if name != "" {
		src.Name = name
	}
	if _, err := s.manager.Create(ctx, src); err != nil {
		res.Failed++
		log.Warn("Failed to start guest", zap.Error(err))
		return
	}
	res.Loaded++
}
