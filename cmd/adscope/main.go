package main

import (
	"github.com/bwmarrin/snowflake"

	"github.com/adscopehq/adscope/internal/clock"
	"github.com/adscopehq/adscope/internal/migration"
	"github.com/adscopehq/adscope/internal/observability"
	"github.com/adscopehq/adscope/internal/scheduler"
	"github.com/adscopehq/adscope/internal/server"
	"github.com/adscopehq/adscope/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		server.Module,
		scheduler.Module,
		migration.Module,
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
