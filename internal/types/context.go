package types

import "context"

type contextKey string

const (
	CtxRequestID contextKey = "ctx_request_id"
	CtxAppID     contextKey = "ctx_app_id"
	CtxTeamID    contextKey = "ctx_team_id"
	CtxUserID    contextKey = "ctx_user_id"
	CtxScopes    contextKey = "ctx_scopes"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-Id"
	HeaderAdminAPIKey   = "X-Admin-API-Key"
)

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxRequestID).(string); ok {
		return id
	}
	return ""
}

func GetAppID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxAppID).(string); ok {
		return id
	}
	return ""
}

func GetTeamID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxTeamID).(string); ok {
		return id
	}
	return ""
}

func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxUserID).(string); ok {
		return id
	}
	return ""
}

func GetScopes(ctx context.Context) []string {
	if scopes, ok := ctx.Value(CtxScopes).([]string); ok {
		return scopes
	}
	return nil
}

// HasScope reports whether the authenticated caller carries a scope
func HasScope(ctx context.Context, scope string) bool {
	for _, s := range GetScopes(ctx) {
		if s == scope {
			return true
		}
	}
	return false
}
