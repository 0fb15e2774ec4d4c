package authsdk

// ErrorResponse is the JSON body of an OAuth2 error.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TokenResponse is the token endpoint response (RFC 6749 §5.1).
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// IntrospectionResponse follows RFC 7662. Inactive tokens carry only
// Active=false.
type IntrospectionResponse struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Sub       string `json:"sub,omitempty"`
}

// UserInfoResponse describes the bearer of an access token.
type UserInfoResponse struct {
	Sub          string            `json:"sub"` // identity id, or client id for client tokens
	UserID       string            `json:"user_id,omitempty"`
	ClientID     string            `json:"client_id"`
	Scope        string            `json:"scope,omitempty"`
	Role         string            `json:"role,omitempty"`
	IdentityType string            `json:"identity_type,omitempty"`
	Claims       map[string]string `json:"claims,omitempty"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks lists readiness of each dependency ("ok" or an error).
type HealthChecks struct {
	Database string `json:"database"`
	States   string `json:"states,omitempty"` // only when redis holds states
}
