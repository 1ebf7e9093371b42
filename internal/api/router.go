package api

import (
	"net/http"

	"condoadmin/internal/metrics"
	"condoadmin/internal/middleware"
	"condoadmin/pkg/constraints"

	"github.com/gin-gonic/gin"
)

type ConsoleDeps struct {
	Sessions       *SessionHandler
	Resources      *ResourceHandler
	Signal         middleware.AuthSignal
	LoginLimiter   *middleware.LoginLimiter
	AllowedOrigins []string
}

// RegisterConsoleRoutes builds the admin console. Every page except the login
// route sits behind the session guard, and nothing is served while the
// session is still being restored.
func RegisterConsoleRoutes(d ConsoleDeps) *gin.Engine {
	r := gin.New()

	r.Use(
		middleware.CorsMiddleware(d.AllowedOrigins),
		middleware.RequestID(),
		middleware.GinZapLogger(),
		middleware.GinZapRecovery(),
		middleware.HttpMiddleware("console"),
		middleware.TraceMiddleware(),
	)
	_ = r.SetTrustedProxies(nil)

	r.GET("/health", HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	app := r.Group("/")
	app.Use(middleware.SessionReady(d.Signal))
	{
		app.GET("/session", d.Sessions.Session)
		app.GET("/session/stream", d.Sessions.Stream)
		app.POST("/logout", d.Sessions.Logout)

		app.GET(constraints.RouteLogin,
			middleware.RedirectAuthenticated(d.Signal, constraints.RouteDashboard),
			d.Sessions.LoginPage)
		app.POST(constraints.RouteLogin, d.LoginLimiter.Middleware(), d.Sessions.Login)
	}

	protected := app.Group("/")
	protected.Use(middleware.RequireSession(d.Signal, constraints.RouteLogin))
	{
		protected.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusFound, constraints.RouteDashboard)
		})
		protected.GET(constraints.RouteDashboard, d.Resources.Dashboard)
		for _, res := range ConsoleResources {
			protected.GET(res.Route, d.Resources.List(res))
		}
	}
	return r
}

// devCollections are the read-only lists the dev API serves.
var devCollections = []string{"users", "roles", "privileges", "unidades", "cuotas", "bitacora"}

// RegisterDevAPIRoutes mounts a stand-in for the condo backend under /api.
func RegisterDevAPIRoutes(auth *AuthHandler, dir *DirectoryHandler, verifier middleware.AccessVerifier) *gin.Engine {
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.GinZapLogger(),
		middleware.GinZapRecovery(),
		middleware.HttpMiddleware("devapi"),
	)
	_ = r.SetTrustedProxies(nil)

	r.GET("/health", HealthCheck)

	api := r.Group("/api")
	{
		api.POST("/"+constraints.PathLogin, auth.Login)
		api.POST("/"+constraints.PathLogout, auth.Logout)
		api.POST("/"+constraints.PathRefresh, auth.Refresh)
	}

	protected := r.Group("/api")
	protected.Use(middleware.BearerAuth(verifier))
	{
		protected.GET("/"+constraints.PathMe, auth.Me)
		for _, name := range devCollections {
			protected.GET("/"+name+"/", dir.List(name))
		}
	}
	return r
}
