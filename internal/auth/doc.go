// Package auth provides authentication for the assistant-relay admin API.
//
// # JWT Tokens
//
// Operators authenticate with HS256 JWTs signed with auth.jwt_secret. The
// secret must be at least MinSecretLength bytes. Tokens carry:
//
//   - sub: who the operator is
//   - roles: granted roles; "admin" is required for the admin API
//   - iat, exp: issue and expiry times
//
// Tokens are minted with the relay's token command:
//
//	assistant-relay token -subject ops -ttl 24h
//
// # HTTP Middleware
//
//	r.Use(auth.HTTPAuthMiddleware(verifier, logger))
//	r.Use(auth.RequireAdminHTTP())
//
// Handlers read the identity with FromContext.
package auth
