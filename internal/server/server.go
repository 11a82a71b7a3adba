package server

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/esimmock/internal/authorization"
	catalogdomain "github.com/smallbiznis/esimmock/internal/catalog/domain"
	"github.com/smallbiznis/esimmock/internal/config"
	esimdomain "github.com/smallbiznis/esimmock/internal/esim/domain"
	"github.com/smallbiznis/esimmock/internal/observability"
	obsmiddleware "github.com/smallbiznis/esimmock/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/esimmock/internal/observability/metrics"
	obstracing "github.com/smallbiznis/esimmock/internal/observability/tracing"
	"github.com/smallbiznis/esimmock/internal/ratelimit"
	"github.com/smallbiznis/esimmock/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		QuietProbes:     obsCfg.Log.QuietProbes,
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	esimSvc    esimdomain.Service
	catalogSvc catalogdomain.Service
	seeder     *seed.Seeder
	authzSvc   authorization.Service
	behavior   *config.BehaviorHolder
	limiter    *ratelimit.ProvisionLimiter
	obsMetrics *obsmetrics.Metrics
	rng        *rand.Rand
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	EsimSvc    esimdomain.Service
	CatalogSvc catalogdomain.Service
	Seeder     *seed.Seeder
	AuthzSvc   authorization.Service
	Behavior   *config.BehaviorHolder      `optional:"true"`
	Limiter    *ratelimit.ProvisionLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics         `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		esimSvc:    p.EsimSvc,
		catalogSvc: p.CatalogSvc,
		seeder:     p.Seeder,
		authzSvc:   p.AuthzSvc,
		behavior:   p.Behavior,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}

	svc.engine.Use(svc.BasicAuth())
	svc.engine.Use(svc.MockBehavior())

	svc.registerEsimRoutes()
	svc.registerMayaRoutes()
	svc.registerCatalogRoutes()
	svc.registerAdminRoutes()
	svc.registerQRRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerEsimRoutes() {
	esims := s.engine.Group("/v1/connectivity/esims")

	esims.POST("", s.authorize(authorization.ObjectEsim, authorization.ActionEsimProvision), s.ProvisionRateLimit(), s.ProvisionEsim)
	esims.GET("", s.authorize(authorization.ObjectEsim, authorization.ActionEsimView), s.ListEsims)
	esims.GET("/:esimId", s.authorize(authorization.ObjectEsim, authorization.ActionEsimView), s.GetEsim)
	esims.GET("/iccid/:iccid", s.authorize(authorization.ObjectEsim, authorization.ActionEsimView), s.GetEsimByIccid)
	esims.POST("/:esimId/bundles", s.authorize(authorization.ObjectEsim, authorization.ActionEsimAttachPlan), s.AttachBundle)
	esims.DELETE("/:esimId", s.authorize(authorization.ObjectEsim, authorization.ActionEsimDeactivate), s.DeactivateEsim)
}

func (s *Server) registerMayaRoutes() {
	maya := s.engine.Group(mayaPrefix)

	maya.POST("/esim", s.authorize(authorization.ObjectEsim, authorization.ActionEsimProvision), s.ProvisionRateLimit(), s.MayaCreateEsim)
	maya.GET("/esim/:iccid", s.authorize(authorization.ObjectEsim, authorization.ActionEsimView), s.MayaGetEsim)
	maya.POST("/esim/:iccid/plan", s.authorize(authorization.ObjectEsim, authorization.ActionEsimAttachPlan), s.MayaAttachPlan)

	account := maya.Group("/account")
	account.GET("/products", s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogView), s.MayaListProducts)
	account.GET("/products/:productId", s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogView), s.MayaGetProduct)
	account.GET("/balance", s.authorize(authorization.ObjectAccount, authorization.ActionAccountView), s.MayaGetBalance)
}

func (s *Server) registerCatalogRoutes() {
	bundles := s.engine.Group("/v1/bundles")

	bundles.GET("", s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogView), s.ListBundles)
	bundles.GET("/:bundleId", s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogView), s.GetBundle)
	bundles.POST("", s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogManage), s.CreateBundle)
	bundles.POST("/bulk", s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogManage), s.BulkUpsertBundles)
	bundles.PATCH("/:bundleId", s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogManage), s.UpdateBundle)
	bundles.DELETE("/:bundleId", s.authorize(authorization.ObjectCatalog, authorization.ActionCatalogManage), s.DeleteBundle)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/v1/admin")

	admin.GET("/health", s.AdminHealth)

	admin.POST("/simulate/usage", s.authorize(authorization.ObjectAdmin, authorization.ActionAdminSimulate), s.SimulateUsage)
	admin.POST("/simulate/status", s.authorize(authorization.ObjectAdmin, authorization.ActionAdminSimulate), s.ForceStatus)
	admin.DELETE("/reset", s.authorize(authorization.ObjectAdmin, authorization.ActionAdminReset), s.ResetData)
	admin.POST("/seed", s.authorize(authorization.ObjectAdmin, authorization.ActionAdminSeed), s.SeedData)
	admin.GET("/statistics", s.authorize(authorization.ObjectAdmin, authorization.ActionAdminStatistics), s.GetStatistics)
}

func (s *Server) registerQRRoutes() {
	qr := s.engine.Group("/qr")

	qr.GET("/:esimId", s.GetQRCode)
	qr.GET("/:esimId/base64", s.GetQRCodeBase64)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
