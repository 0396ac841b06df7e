package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Mode selects which credential kinds a deployment accepts.
type Mode string

const (
	// ModeLocal verifies bearer tokens against the shared local secret.
	ModeLocal Mode = "local"
	// ModeIDP accepts only IdP-signed tokens; assertion headers are
	// rejected outright.
	ModeIDP Mode = "idp"
	// ModeMixed tries the local secret first and falls back to the IdP
	// key set.
	ModeMixed Mode = "mixed"
)

// ParseMode validates a raw mode string.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeLocal:
		return ModeLocal, nil
	case ModeIDP:
		return ModeIDP, nil
	case ModeMixed:
		return ModeMixed, nil
	default:
		return "", fmt.Errorf("unsupported auth mode: %s", raw)
	}
}

// ErrMissingCredentials is returned when no usable credential is
// present on the request.
var ErrMissingCredentials = errors.New("missing authentication context")

// Config wires a Resolver.
type Config struct {
	Mode   Mode
	Secret string
	// KeySet verifies IdP tokens; required in idp mode, optional in
	// mixed mode.
	KeySet    *KeySet
	Issuer    string
	Audience  string
	RoleClaim string
	// AllowSSOHeaders admits X-SSO-User / X-SSO-Role assertions.
	AllowSSOHeaders bool
	// AllowHeaderAuth admits X-Actor-Id / X-Actor-Role assertions.
	AllowHeaderAuth bool
}

// Resolver turns request credentials into an ActorContext.
type Resolver struct {
	cfg    Config
	secret []byte
}

// NewResolver builds a resolver. The role claim defaults to "role".
func NewResolver(cfg Config) *Resolver {
	if cfg.Mode == "" {
		cfg.Mode = ModeLocal
	}
	if cfg.RoleClaim == "" {
		cfg.RoleClaim = "role"
	}
	return &Resolver{cfg: cfg, secret: []byte(cfg.Secret)}
}

// Resolve walks the credential priority order: Authorization bearer,
// X-SSO-Token, SSO assertion headers, compat assertion headers. Every
// failure maps to a 401 at the HTTP layer.
func (a *Resolver) Resolve(r *http.Request) (ActorContext, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return ActorContext{}, errors.New("invalid bearer token format")
		}
		return a.verifyBearer(strings.TrimSpace(parts[1]))
	}

	if token := r.Header.Get("X-SSO-Token"); token != "" && a.cfg.Mode != ModeLocal {
		return a.verifyIDP(token, SourceIDP)
	}

	if a.cfg.AllowSSOHeaders && a.cfg.Mode != ModeIDP {
		user := r.Header.Get("X-SSO-User")
		role := r.Header.Get("X-SSO-Role")
		if user != "" && role != "" {
			return assertedActor(user, role, SourceSSO)
		}
	}

	if a.cfg.AllowHeaderAuth && a.cfg.Mode != ModeIDP {
		id := r.Header.Get("X-Actor-Id")
		role := r.Header.Get("X-Actor-Role")
		if id != "" && role != "" {
			return assertedActor(id, role, SourceHeader)
		}
	}

	return ActorContext{}, ErrMissingCredentials
}

func (a *Resolver) verifyBearer(raw string) (ActorContext, error) {
	switch a.cfg.Mode {
	case ModeIDP:
		return a.verifyIDP(raw, SourceJWT)
	case ModeMixed:
		actor, err := a.verifyLocal(raw)
		if err == nil {
			return actor, nil
		}
		if a.cfg.KeySet != nil {
			if actor, idpErr := a.verifyIDP(raw, SourceJWT); idpErr == nil {
				return actor, nil
			}
		}
		return ActorContext{}, err
	default:
		return a.verifyLocal(raw)
	}
}

func (a *Resolver) verifyLocal(raw string) (ActorContext, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return ActorContext{}, fmt.Errorf("invalid bearer token: %w", err)
	}
	return a.actorFromClaims(claims, SourceJWT)
}

func (a *Resolver) verifyIDP(raw, source string) (ActorContext, error) {
	if a.cfg.KeySet == nil {
		return ActorContext{}, errors.New("idp key set not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "RS256"})}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, a.cfg.KeySet.Keyfunc, opts...)
	if err != nil {
		return ActorContext{}, fmt.Errorf("invalid sso token: %w", err)
	}
	return a.actorFromClaims(claims, source)
}

func (a *Resolver) actorFromClaims(claims jwt.MapClaims, source string) (ActorContext, error) {
	sub, _ := claims["sub"].(string)
	sub = strings.TrimSpace(sub)
	rawRole, _ := claims[a.cfg.RoleClaim].(string)
	role := NormalizeRole(rawRole)
	if sub == "" || !ValidRole(role) {
		return ActorContext{}, errors.New("bearer token missing sub/role")
	}
	return ActorContext{ActorID: sub, Role: role, Source: source}, nil
}

func assertedActor(id, rawRole, source string) (ActorContext, error) {
	role := NormalizeRole(rawRole)
	if !ValidRole(role) {
		if source == SourceSSO {
			return ActorContext{}, errors.New("invalid sso role")
		}
		return ActorContext{}, errors.New("invalid header role")
	}
	return ActorContext{ActorID: strings.TrimSpace(id), Role: role, Source: source}, nil
}
