package seed

import (
	"context"
	"errors"

	catalogdomain "github.com/smallbiznis/esimmock/internal/catalog/domain"
	"github.com/smallbiznis/esimmock/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("seed",
	fx.Provide(New),
	fx.Invoke(seedOnStart),
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Catalog catalogdomain.Service
}

// Seeder inserts the default bundle catalog.
type Seeder struct {
	log     *zap.Logger
	catalog catalogdomain.Service
}

func New(p Params) *Seeder {
	return &Seeder{
		log:     p.Log.Named("seed"),
		catalog: p.Catalog,
	}
}

// EnsureCatalog creates every default bundle that is not present yet and
// reports how many were created. Existing bundles are left untouched.
func (s *Seeder) EnsureCatalog(ctx context.Context) (int, error) {
	created := 0
	for _, req := range DefaultBundles() {
		_, err := s.catalog.Create(ctx, req)
		switch {
		case err == nil:
			created++
			s.log.Debug("bundle seeded", zap.String("plan_id", req.PlanID))
		case errors.Is(err, catalogdomain.ErrAlreadyExists):
		default:
			return created, err
		}
	}
	s.log.Info("catalog seeded", zap.Int("created", created))
	return created, nil
}

func seedOnStart(lc fx.Lifecycle, cfg config.Config, s *Seeder) {
	if !cfg.SeedOnStart {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			count, err := s.catalog.Count(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				s.log.Info("bundles already exist, skipping seed", zap.Int64("count", count))
				return nil
			}
			_, err = s.EnsureCatalog(ctx)
			return err
		},
	})
}
