// Package server assembles the HTTP routing table.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "natours/internal/docs" // swagger docs
	"natours/internal/handlers"
	"natours/internal/middleware"
	"natours/internal/models"
	"natours/internal/services"
)

// Deps are the services the router dispatches to.
type Deps struct {
	AuthService services.AuthServicer
	UserService services.UserServicer

	// AppURL is the public base URL used in emailed links.
	AppURL string
	// MetricsAPIKey guards /metrics. Empty leaves it open.
	MetricsAPIKey string
	// TokenTTL is the max age of the jwt cookie.
	TokenTTL time.Duration
	// SecureCookies marks the jwt cookie HTTPS-only.
	SecureCookies bool
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(deps Deps) *gin.Engine {
	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.AppURL, handlers.TokenCookie{
		MaxAge: deps.TokenTTL,
		Secure: deps.SecureCookies,
	})
	userHandler := handlers.NewUserHandler(deps.UserService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", middleware.APIKey(deps.MetricsAPIKey), gin.WrapH(promhttp.Handler()))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	users := v1.Group("/users")
	users.POST("/signup", authHandler.Signup)
	users.POST("/login", authHandler.Login)
	users.POST("/forgotPassword", authHandler.ForgotPassword)
	users.PATCH("/resetPassword/:token", authHandler.ResetPassword)

	// Protected routes
	protected := users.Group("")
	protected.Use(middleware.Protect(deps.AuthService))
	protected.PATCH("/updateMyPassword", authHandler.UpdatePassword)
	protected.GET("/me", userHandler.GetMe)
	protected.PATCH("/updateMe", userHandler.UpdateMe)
	protected.DELETE("/deleteMe", userHandler.DeleteMe)

	// Admin routes
	admin := protected.Group("")
	admin.Use(middleware.RestrictTo(deps.AuthService, models.RoleAdmin))
	admin.GET("", userHandler.ListUsers)
	admin.GET("/:id", userHandler.GetUser)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Error: handlers.ErrorDetail{
			Code:    "NOT_FOUND",
			Message: "Can't find " + c.Request.URL.Path + " on this server!",
		}})
	})

	return router
}
