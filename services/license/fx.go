package license

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("license.module",
	fx.Provide(
		NewCodec,
		NewService,
		NewHandler,
	),
)

var ServerModule = fx.Module("license.server",
	Module,
	fx.Invoke(
		migrate,
		registerRoutes,
	),
)

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&License{}, &Application{}); err != nil {
		zap.L().Error("failed to migrate license tables", zap.Error(err))
		return err
	}
	return nil
}

func registerRoutes(r *gin.Engine, h *Handler) {
	h.RegisterRoutes(r)
}
