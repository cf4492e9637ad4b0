package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"eventpilot/internal/apperr"
	"eventpilot/internal/config"
	"eventpilot/internal/logger"
	"eventpilot/internal/models"
	"eventpilot/internal/utils"

	"github.com/coreos/go-oidc/v3/oidc"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	valetKey     contextKey = "valet_employee"
)

// Principal is the admin-side caller resolved from an OIDC token.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Roles  []string
}

func (p *Principal) HasRole(roles ...string) bool {
	for _, have := range p.Roles {
		for _, want := range roles {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}
	return false
}

func (p *Principal) IsAdmin() bool {
	return p.HasRole(models.RoleAdmin, models.RoleSuperAdmin)
}

// TokenVerifier turns a raw bearer token into a Principal.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Principal, error)
}

// OIDCVerifier verifies tokens against the configured issuer.
type OIDCVerifier struct {
	verifier   *oidc.IDTokenVerifier
	rolesClaim string
}

// NewOIDCVerifier discovers the issuer. Without a client id the audience
// check is skipped.
func NewOIDCVerifier(ctx context.Context, cfg config.AuthConfig) (*OIDCVerifier, error) {
	if cfg.OIDCIssuer == "" {
		return nil, errors.New("OIDC_ISSUER not set")
	}
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{
		ClientID:          cfg.OIDCClientID,
		SkipClientIDCheck: cfg.OIDCClientID == "",
	})
	return &OIDCVerifier{verifier: verifier, rolesClaim: cfg.RolesClaim}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (*Principal, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	return PrincipalFromClaims(claims, v.rolesClaim), nil
}

// PrincipalFromClaims reads sub, email, name and the roles found under
// rolesClaim, which may be a dotted path such as "realm_access.roles".
func PrincipalFromClaims(claims map[string]interface{}, rolesClaim string) *Principal {
	p := &Principal{
		UserID: stringClaim(claims, "sub"),
		Email:  stringClaim(claims, "email"),
		Name:   stringClaim(claims, "name"),
	}

	var node interface{} = claims
	for _, key := range strings.Split(rolesClaim, ".") {
		m, ok := node.(map[string]interface{})
		if !ok {
			node = nil
			break
		}
		node = m[key]
	}
	switch roles := node.(type) {
	case []interface{}:
		for _, r := range roles {
			if s, ok := r.(string); ok {
				p.Roles = append(p.Roles, s)
			}
		}
	case string:
		p.Roles = strings.Fields(strings.ReplaceAll(roles, ",", " "))
	}
	return p
}

func stringClaim(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}

// Middleware authenticates admin requests with the bearer token.
func Middleware(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteError(w, apperr.ErrUnauthorized)
				return
			}

			principal, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteError(w, apperr.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin lets ADMIN and SUPER_ADMIN through. It must run after Middleware.
func RequireAdmin(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFrom(r.Context())
			if p == nil {
				utils.WriteError(w, apperr.ErrUnauthorized)
				return
			}
			if !p.IsAdmin() {
				log.LogSecurity("FORBIDDEN", fmt.Sprintf("user %s denied %s %s", p.UserID, r.Method, r.URL.Path))
				utils.WriteError(w, apperr.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValetMiddleware authenticates valet employee requests.
func ValetMiddleware(tokens *ValetTokens, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := ExtractValetToken(r)
			if err != nil {
				utils.WriteError(w, apperr.ErrUnauthorized)
				return
			}
			claims, err := tokens.Verify(r.Context(), raw)
			if err != nil {
				if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenRevoked) {
					log.LogSecurity("INVALID_VALET_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
					utils.WriteError(w, apperr.ErrUnauthorized)
					return
				}
				log.Error("AUTH", fmt.Sprintf("Valet token check failed: %v", err))
				utils.WriteError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), valetKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom returns the admin caller, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// UserID returns the admin caller's subject, or "".
func UserID(ctx context.Context) string {
	if p := PrincipalFrom(ctx); p != nil {
		return p.UserID
	}
	return ""
}

// Email returns the caller's email in lower case, or "". Local accounts are
// matched on it since the token subject belongs to the identity provider.
func Email(ctx context.Context) string {
	if p := PrincipalFrom(ctx); p != nil {
		return strings.ToLower(strings.TrimSpace(p.Email))
	}
	return ""
}

// ValetFrom returns the valet employee's claims, or nil.
func ValetFrom(ctx context.Context) *ValetClaims {
	c, _ := ctx.Value(valetKey).(*ValetClaims)
	return c
}

// WithPrincipal and WithValet attach callers to ctx, for tests and internal calls.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func WithValet(ctx context.Context, c *ValetClaims) context.Context {
	return context.WithValue(ctx, valetKey, c)
}
