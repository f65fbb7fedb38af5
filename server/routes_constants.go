package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// OIDC flow
	RouteLogin    = "/login"
	RouteCallback = "/callback"
	RouteLogout   = "/logout"

	// JSON inspection endpoints
	RouteTestConfig = "/test/config"
	RouteUserinfo   = "/userinfo"
	RouteIDToken    = "/id-token"
	RouteDBUsers    = "/db/users"
	RouteHealth     = "/health"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
	RouteStaticJS  = "/js/{file}"
)
