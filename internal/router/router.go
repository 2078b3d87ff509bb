package router

import (
	"time"

	"github.com/funkypatns/progym/internal/config"
	"github.com/funkypatns/progym/internal/handler"
	"github.com/funkypatns/progym/internal/infra"
	"github.com/funkypatns/progym/internal/middleware"
	"github.com/funkypatns/progym/internal/model"
	"github.com/funkypatns/progym/internal/repository"
	"github.com/funkypatns/progym/internal/service"
	"github.com/funkypatns/progym/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, smtpCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.Metrics())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	planRepo := repository.NewPlanRepository(db)
	shiftRepo := repository.NewShiftRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(userRepo, cfg)
	memberSvc := service.NewMemberService(memberRepo)
	planSvc := service.NewPlanService(planRepo)
	shiftSvc := service.NewShiftService(shiftRepo, paymentRepo)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	paymentSvc := service.NewPaymentService(paymentRepo, memberRepo, shiftSvc, dispatcher)
	subscriptionSvc := service.NewSubscriptionService(
		subscriptionRepo, planRepo, memberRepo, shiftRepo, paymentRepo,
		paymentSvc, shiftSvc, dispatcher,
	)
	packageSvc := service.NewPackageService(packageRepo, planRepo, memberRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usersH := handler.NewUsersHandler(authSvc)
	membersH := handler.NewMembersHandler(memberSvc)
	plansH := handler.NewPlansHandler(planSvc)
	shiftsH := handler.NewShiftsHandler(shiftSvc)
	paymentsH := handler.NewPaymentsHandler(paymentSvc)
	subscriptionsH := handler.NewSubscriptionsHandler(subscriptionSvc)
	packagesH := handler.NewPackagesHandler(packageSvc)
	receiptsH := handler.NewReceiptsHandler(receiptRepo)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, smtpCB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	anyStaff := middleware.RequireRole(model.RoleReception, model.RoleManager, model.RoleAdmin)
	managerUp := middleware.RequireRole(model.RoleManager, model.RoleAdmin)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	v1 := r.Group("/v1", jwtMW)
	{
		shifts := v1.Group("/shifts")
		{
			shifts.POST("/open", anyStaff, shiftsH.Open)
			shifts.POST("/close", anyStaff, shiftsH.Close)
			shifts.GET("/active", anyStaff, shiftsH.GetActive)
			shifts.GET("/:id/summary", anyStaff, shiftsH.Summary)
			shifts.GET("/:id/payments", anyStaff, paymentsH.ListByShift)
			shifts.GET("/history", managerUp, shiftsH.History)
		}

		payments := v1.Group("/payments")
		{
			payments.POST("", anyStaff, paymentsH.Record)
			payments.POST("/refund", managerUp, paymentsH.Refund)
			payments.GET("/:id", anyStaff, paymentsH.Get)
			payments.GET("/:id/receipt", anyStaff, receiptsH.GetByPayment)
		}

		subs := v1.Group("/subscriptions")
		{
			subs.POST("", anyStaff, subscriptionsH.Create)
			subs.POST("/renew", anyStaff, subscriptionsH.Renew)
			subs.GET("/:id", anyStaff, subscriptionsH.Get)
			subs.POST("/:id/toggle-pause", anyStaff, subscriptionsH.TogglePause)
			subs.GET("/:id/cancel-preview", managerUp, subscriptionsH.PreviewCancel)
			subs.POST("/:id/cancel", managerUp, subscriptionsH.Cancel)
		}

		packages := v1.Group("/packages")
		{
			packages.POST("", anyStaff, packagesH.Assign)
			packages.GET("/:id", anyStaff, packagesH.Get)
			packages.POST("/:id/check-in", anyStaff, packagesH.CheckIn)
		}

		members := v1.Group("/members")
		{
			members.POST("", anyStaff, membersH.Create)
			members.GET("", anyStaff, membersH.List)
			members.GET("/:id", anyStaff, membersH.Get)
			members.PUT("/:id", managerUp, membersH.Update)
			members.GET("/:id/payments", anyStaff, paymentsH.ListByMember)
			members.GET("/:id/subscriptions", anyStaff, subscriptionsH.ListByMember)
			members.GET("/:id/packages", anyStaff, packagesH.ListByMember)
			members.GET("/:id/receipts", anyStaff, receiptsH.ListByMember)
		}

		// Plans — staff can read, admin can write
		v1.GET("/plans", anyStaff, plansH.List)
		v1.GET("/plans/:id", anyStaff, plansH.Get)
		plans := v1.Group("/plans", adminOnly)
		{
			plans.POST("", plansH.Create)
			plans.DELETE("/:id", plansH.Deactivate)
		}

		receipts := v1.Group("/receipts", anyStaff)
		{
			receipts.GET("/:id", receiptsH.Get)
			receipts.GET("/:id/pdf", receiptsH.Download)
		}

		users := v1.Group("/users", adminOnly)
		{
			users.POST("", usersH.Create)
			users.GET("", usersH.List)
			users.PUT("/:id", usersH.Update)
			users.DELETE("/:id", usersH.Deactivate)
			users.PATCH("/:id/reactivate", usersH.Reactivate)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
