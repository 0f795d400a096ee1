package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/jewelry-storefront/internal/handler"
	"github.com/iliyamo/jewelry-storefront/internal/metrics"
	"github.com/iliyamo/jewelry-storefront/internal/middleware"
)

// Deps bundles what the /api routes need.  RateLimit and Cache may be nil.
type Deps struct {
	Resolver           middleware.Resolver
	ReservedSubdomains []string
	Log                *zap.Logger

	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc

	Auth     *handler.AuthHandler
	Products *handler.ProductHandler
	Cart     *handler.CartHandler
	Orders   *handler.OrderHandler
	Uploads  handler.Uploads
}

// RegisterRoutes registers routes that never depend on a client: health
// checks and the Prometheus endpoint.
func RegisterRoutes(e *echo.Echo, version string) {
	e.GET("/health", handler.Health(version))
	e.GET("/healthz", handler.Healthz)
	e.GET("/metrics", metrics.Handler())
}

// RegisterAPI mounts every client-scoped route twice: under /api, where
// the client comes from the header, subdomain or query, and under
// /api/c/:clientId for path-based selection.
func RegisterAPI(e *echo.Echo, d Deps) {
	for _, prefix := range []string{"/api", "/api/c/:clientId"} {
		g := e.Group(prefix, d.scoped()...)
		RegisterAuth(g, d.Auth)
		RegisterCatalog(g, d.Products, d.Cache, d.Uploads)
		RegisterCustomer(g, d.Cart, d.Orders)
		RegisterAdmin(g, d.Orders)
	}
}

// scoped is the middleware chain every /api request passes: resolve the
// client first so limits and logs are per client.
func (d Deps) scoped() []echo.MiddlewareFunc {
	mw := []echo.MiddlewareFunc{middleware.ResolveClient(d.Resolver, d.ReservedSubdomains, d.Log)}
	if d.RateLimit != nil {
		mw = append(mw, d.RateLimit)
	}
	return mw
}

// RegisterAuth registers authentication routes.  Register, login and
// logout are public; the rest require a token issued by the same client.
func RegisterAuth(g *echo.Group, a *handler.AuthHandler) {
	pub := g.Group("/auth")
	pub.POST("/register", a.Register)
	pub.POST("/login", a.Login)
	pub.POST("/logout", a.Logout)

	priv := g.Group("/auth", middleware.JWTAuth())
	priv.GET("/profile", a.Profile)
	priv.PUT("/profile", a.UpdateProfile)
	priv.POST("/addresses", a.AddAddress)
	priv.PUT("/change-password", a.ChangePassword)
	priv.POST("/change-password", a.ChangePassword)
}

// RegisterCatalog registers the public catalog and the client descriptor.
// Only these anonymous reads go through the response cache.
func RegisterCatalog(g *echo.Group, p *handler.ProductHandler, cache echo.MiddlewareFunc, uploads handler.Uploads) {
	var mw []echo.MiddlewareFunc
	if cache != nil {
		mw = append(mw, cache)
	}
	g.GET("/products", p.List, mw...)
	g.GET("/products/:id", p.Get, mw...)
	g.GET("/client", handler.Client(uploads))
}
