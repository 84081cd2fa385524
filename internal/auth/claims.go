package auth

// Claims is the signed token payload. Times are unix seconds; every
// field is semantic for verification, none is decorative.
type Claims struct {
	Issuer   string   `json:"iss"`
	Audience string   `json:"aud"`
	Subject  string   `json:"sub,omitempty"`
	AppID    string   `json:"appId"`
	TeamID   string   `json:"teamId,omitempty"`
	UserID   string   `json:"userId,omitempty"`
	Scopes   []string `json:"scopes"`
	IssuedAt int64    `json:"iat"`
	Expiry   int64    `json:"exp"`
	Jti      string   `json:"jti"`
	Kid      string   `json:"kid"`
}

// VerifiedClaims is what a successful verification hands to callers
type VerifiedClaims struct {
	AppID  string   `json:"app_id"`
	TeamID string   `json:"team_id,omitempty"`
	UserID string   `json:"user_id,omitempty"`
	Scopes []string `json:"scopes"`
	Kid    string   `json:"kid"`
	Jti    string   `json:"jti"`
}

// HasScope reports whether the token carries the given scope
func (c *VerifiedClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
