package ldp

import (
	"strings"

	"github.com/labstack/echo/v4"
	"trellis.io/ldp/security"
	"trellis.io/ldp/webac"
)

// RegisterRoutes wires the LDP protocol handler onto an Echo instance. A
// single catch-all route matches every resource path; the HTTP method
// selects the LDP operation, matching the teacher's convention of thin
// per-method handlers behind one route group.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("", h.PrincipalMiddleware())
	g.GET("/*", h.Get)
	g.HEAD("/*", h.Get)
	g.POST("/*", h.Post)
	g.PUT("/*", h.Put)
	g.PATCH("/*", h.Patch)
	g.DELETE("/*", h.Delete)
	g.OPTIONS("/*", h.Options)
}

// Options reports the LDP/WebDAV compliance header and allowed methods, per
// spec.md §4.7/§8.
func (h *Handler) Options(c echo.Context) error {
	c.Response().Header().Set("Allow", "GET, HEAD, OPTIONS, POST, PUT, PATCH, DELETE, PROPFIND, PROPPATCH, MKCOL, COPY, MOVE")
	c.Response().Header().Set("DAV", "1,3")
	c.Response().Header().Set("Link", `<http://www.w3.org/ns/ldp#Resource>; rel="type"`)
	return c.NoContent(204)
}

// PrincipalMiddleware extracts a webac.Principal from the Authorization
// header (Bearer JWT) and attaches it to the request context, per spec.md
// §1's note that the auth mechanism itself is out of scope but WebAC
// consumes whatever Principal it produces. Exported so the WebDAV
// projection (C11) can share the same authentication step.
func (h *Handler) PrincipalMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("principal", extractPrincipal(c, h.JWT))
			return next(c)
		}
	}
}

func extractPrincipal(c echo.Context, jwtSvc *security.JWTService) webac.Principal {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if jwtSvc == nil || !strings.HasPrefix(auth, "Bearer ") {
		return webac.Principal{}
	}
	tokenStr := strings.TrimPrefix(auth, "Bearer ")
	token, err := jwtSvc.ValidateToken(tokenStr)
	if err != nil {
		return webac.Principal{}
	}
	agent := token.Subject()
	return webac.Principal{Agent: agent, Authenticated: agent != ""}
}
