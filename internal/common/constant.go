package common

// AuthorizationHeaderName carries the bearer access token on HTTP requests
// and gRPC metadata.
const AuthorizationHeaderName = "authorization"

// BearerScheme is the authorization scheme prefix for access tokens.
const BearerScheme = "Bearer"
