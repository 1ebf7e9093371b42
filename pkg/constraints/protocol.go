package constraints

// API paths, relative to the normalized base URL.
const (
	PathLogin   = "auth/login/"
	PathLogout  = "auth/logout/"
	PathRefresh = "token/refresh/"
	PathMe      = "users/me/"
)

// Console routes.
const (
	RouteLogin     = "/login"
	RouteDashboard = "/dashboard"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	BearerPrefix        = "Bearer "
)

// Keys used by every durable credential store.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)
