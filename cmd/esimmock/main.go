package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/esimmock/internal/authorization"
	"github.com/smallbiznis/esimmock/internal/catalog"
	"github.com/smallbiznis/esimmock/internal/clock"
	"github.com/smallbiznis/esimmock/internal/config"
	"github.com/smallbiznis/esimmock/internal/esim"
	"github.com/smallbiznis/esimmock/internal/identifier"
	"github.com/smallbiznis/esimmock/internal/migration"
	"github.com/smallbiznis/esimmock/internal/observability"
	"github.com/smallbiznis/esimmock/internal/ratelimit"
	"github.com/smallbiznis/esimmock/internal/seed"
	"github.com/smallbiznis/esimmock/internal/server"
	"github.com/smallbiznis/esimmock/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		identifier.Module,

		// Functional Domains
		catalog.Module,
		esim.Module,
		seed.Module,
		ratelimit.Module,
		authorization.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
