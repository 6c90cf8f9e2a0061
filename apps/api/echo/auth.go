package echoapi

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/tsakani/shule/core"
	"github.com/tsakani/shule/core/user"
)

// TokenKind selects which secret and lifetime a token is signed with.
// Access and refresh tokens are signed with independent secrets so that
// possession of one kind can never forge the other.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

var errInvalidToken = errors.New("invalid token")

// Claims represents the identity facts transmitted via a signed token.
type Claims struct {
	jwt.RegisteredClaims
	Email string    `json:"email,omitempty"`
	Role  user.Role `json:"role"`
}

// GetUserClaims builds the request claims for a user; the registered claims
// (issuer, expiry, issued-at) are filled in by TokenCodec.Issue.
func GetUserClaims(usr user.User) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: usr.ID},
		Email:            usr.Email,
		Role:             usr.Role,
	}
}

// TokenCodec signs and verifies the two token kinds. Pure computation; no
// side effects beyond reading the configured secrets.
type TokenCodec struct {
	issuer  string
	secrets map[TokenKind][]byte
	ttls    map[TokenKind]time.Duration
}

func NewTokenCodec(conf *core.Config) *TokenCodec {
	return &TokenCodec{
		issuer: conf.AppName,
		secrets: map[TokenKind][]byte{
			AccessToken:  []byte(conf.AccessTokenSecret),
			RefreshToken: []byte(conf.RefreshTokenSecret),
		},
		ttls: map[TokenKind]time.Duration{
			AccessToken:  conf.AccessTokenTTL,
			RefreshToken: conf.RefreshTokenTTL,
		},
	}
}

// Issue signs claims with the kind-specific secret and lifetime.
func (c *TokenCodec) Issue(claims Claims, kind TokenKind) (string, error) {
	now := time.Now()
	claims.Issuer = c.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttls[kind]))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	ss, err := token.SignedString(c.secrets[kind])
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Verify parses a token against the kind-specific secret. Bad signature,
// malformed payload and expiry all collapse into errInvalidToken; callers
// never learn which.
func (c *TokenCodec) Verify(tokenStr string, kind TokenKind) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secrets[kind], nil
	}, jwt.WithIssuer(c.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

// authenticate checks credentials against the stored hash and stamps the
// user's last login. Unknown email and wrong password are indistinguishable.
func authenticate(ctx context.Context, email, pwd string, svc user.Service) (user.User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}
