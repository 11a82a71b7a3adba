package esim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/esimmock/internal/esim/repository"
	"github.com/smallbiznis/esimmock/internal/esim/service"
	"go.uber.org/fx"
)

var Module = fx.Module("esim.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewStatusCollector),
	fx.Invoke(registerStatusCollector),
)

func registerStatusCollector(c *service.StatusCollector) error {
	return prometheus.Register(c)
}
