package tenancy

import "context"

type ctxKey string

const (
	teamKey ctxKey = "comms.team_id"
	userKey ctxKey = "comms.user_id"
)

// WithTeamID stores the team id in context.
func WithTeamID(ctx context.Context, teamID string) context.Context {
	return context.WithValue(ctx, teamKey, teamID)
}

// TeamIDFromContext extracts the team id if present.
func TeamIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(teamKey)
	if val == nil {
		return "", false
	}
	teamID, ok := val.(string)
	return teamID, ok && teamID != ""
}

// WithUserID stores the acting user id in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserIDFromContext extracts the acting user id if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(userKey)
	if val == nil {
		return "", false
	}
	userID, ok := val.(string)
	return userID, ok && userID != ""
}
