package catalog

import (
	"github.com/smallbiznis/esimmock/internal/cache"
	"github.com/smallbiznis/esimmock/internal/catalog/domain"
	"github.com/smallbiznis/esimmock/internal/catalog/repository"
	"github.com/smallbiznis/esimmock/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(cache.NewCatalogCache),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) domain.Lookup { return svc }),
)
