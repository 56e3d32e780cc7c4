package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/vedantsingh72/Gatepass/config"
	"github.com/vedantsingh72/Gatepass/database"
	"github.com/vedantsingh72/Gatepass/handlers"
	"github.com/vedantsingh72/Gatepass/leavestats"
	"github.com/vedantsingh72/Gatepass/mailer"
	"github.com/vedantsingh72/Gatepass/middlewares"
	"github.com/vedantsingh72/Gatepass/models"
	"github.com/vedantsingh72/Gatepass/qr"
	"github.com/vedantsingh72/Gatepass/store"
)

// Register wires all HTTP routes.
func Register(e *echo.Echo, cfg *config.Config) {
	passes := store.NewGormStore(database.DB)
	users := store.NewGormUserStore(database.DB)
	engine := qr.NewEngine(passes)

	auth := handlers.NewAuthHandler(cfg, mailer.New(cfg), store.NewGormOTPStore(database.DB))
	ph := handlers.NewPassHandler(passes)
	sh := handlers.NewScanHandler(engine, users)
	lh := handlers.NewLeaveSummaryHandler(passes, users, leavestats.Config{
		FlagThreshold: cfg.FlagThreshold,
		WindowDays:    cfg.FlagWindowDays,
	})

	// ===== Public =====
	e.GET("/healthz", handlers.Health)
	e.POST("/auth/students/register", auth.StudentRegister)
	e.POST("/auth/staff/register", auth.StaffRegister)
	e.POST("/auth/verify-otp", auth.VerifyOTP)
	e.POST("/auth/resend-otp", auth.ResendOTP)
	e.POST("/auth/login", auth.Login)

	// ===== Authenticated =====
	authMW := middlewares.RequireAuth(cfg.JWTSecret)
	e.GET("/auth/profile", auth.Profile, authMW)

	// Students: create / view own passes and their QR
	e.POST("/passes", ph.Create, authMW, middlewares.RequireRole(models.RoleStudent))
	e.GET("/passes/mine", ph.ListMine, authMW, middlewares.RequireRole(models.RoleStudent))
	e.GET("/passes/:id/qr", ph.QRImage, authMW, middlewares.RequireRole(models.RoleStudent))

	// Approvers: the stage awaiting the caller's role
	approvers := middlewares.RequireRole(models.RoleDepartment, models.RoleAcademic, models.RoleHostel)
	e.GET("/passes", ph.ListPending, authMW, approvers)
	e.POST("/passes/:id/decision", ph.Decide, authMW, approvers)

	// Gate
	e.POST("/scan", sh.Scan, authMW, middlewares.RequireRole(models.RoleGate))

	// Leave aggregator projection
	readers := middlewares.RequireRole(models.RoleDepartment, models.RoleAcademic)
	e.GET("/students/leave-summary", lh.List, authMW, readers)
	e.GET("/students/:id/leave-summary", lh.Get, authMW, readers)
}
