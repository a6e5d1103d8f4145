package main

import (
	"go.uber.org/fx"

	"licensing-controlplane/internal/server"
	"licensing-controlplane/pkg/config"
	"licensing-controlplane/pkg/db"
	"licensing-controlplane/pkg/gen"
	"licensing-controlplane/pkg/health"
	"licensing-controlplane/pkg/keys"
	"licensing-controlplane/pkg/logger"
	"licensing-controlplane/pkg/quota"
	"licensing-controlplane/pkg/redis"
	"licensing-controlplane/services/license"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		gen.Module,
		keys.Module,
		db.Module,
		redis.Module,
		quota.Module,
		health.Module,
		server.Module,
		license.ServerModule,
	)

	app.Run()
}
