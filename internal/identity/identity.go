package identity

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthenticated is returned when a bearer token is present but
	// invalid, or when the token subject does not match the claimed user.
	ErrUnauthenticated = errors.New("unauthenticated")
)

type Kind string

const (
	KindAccount     Kind = "account"
	KindAnonymousIP Kind = "anonymous_ip"
)

// Identity is the resolved caller of a request: either a verified account
// or an anonymous client keyed by source address.
type Identity struct {
	Kind      Kind
	AccountID string
	Address   string
}

func (i Identity) IsAccount() bool { return i.Kind == KindAccount }

// Label returns a low-cardinality identity tag for logs.
func (i Identity) Label() string {
	if i.IsAccount() {
		return "account:" + i.AccountID
	}
	return "ip:" + i.Address
}

// Resolver turns an incoming request into an Identity.
type Resolver struct {
	secret []byte
}

func NewResolver(jwtSecret string) *Resolver {
	return &Resolver{secret: []byte(jwtSecret)}
}

// Resolve picks the account path when a bearer token is present, otherwise
// falls back to the client address. bodyUserID, when non-empty, must match
// the verified token subject; the redundant check guards against a client
// buying credits for one account while burning another's quota.
func (r *Resolver) Resolve(req *http.Request, bodyUserID string) (Identity, error) {
	token := bearerToken(req)
	if token == "" {
		if strings.TrimSpace(bodyUserID) != "" {
			return Identity{}, ErrUnauthenticated
		}
		return Identity{Kind: KindAnonymousIP, Address: ClientIP(req)}, nil
	}

	subject, err := r.verify(token)
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}
	if bodyUserID != "" && subject != bodyUserID {
		return Identity{}, ErrUnauthenticated
	}

	// Address is carried for the usage log even on the account path.
	return Identity{Kind: KindAccount, AccountID: subject, Address: ClientIP(req)}, nil
}

func (r *Resolver) verify(token string) (string, error) {
	if len(r.secret) == 0 {
		return "", ErrUnauthenticated
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthenticated
		}
		return r.secret, nil
	})
	if err != nil {
		return "", ErrUnauthenticated
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", ErrUnauthenticated
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrUnauthenticated
	}
	return subject, nil
}

func bearerToken(req *http.Request) string {
	header := strings.TrimSpace(req.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// ClientIP prefers the edge-provided CF-Connecting-IP, then the first hop of
// X-Forwarded-For, then the literal "unknown".
func ClientIP(req *http.Request) string {
	if ip := strings.TrimSpace(req.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	return "unknown"
}
