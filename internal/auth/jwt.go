package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/polkassembly/governance/internal/config"
)

const hasuraClaimsKey = "https://hasura.io/jwt/claims"

var ErrInvalidToken = errors.New("invalid token")

// HasuraClaims is the namespace consumed by the downstream access-control
// layer. Values are strings or string slices.
type HasuraClaims map[string]interface{}

type Claims struct {
	Username      string       `json:"username"`
	Email         string       `json:"email"`
	EmailVerified bool         `json:"email_verified"`
	Web3Signup    bool         `json:"web3signup"`
	TFAEnabled    bool         `json:"is_2fa_enabled"`
	Hasura        HasuraClaims `json:"https://hasura.io/jwt/claims"`
	jwt.RegisteredClaims
}

// UserID is the numeric subject.
func (c *Claims) UserID() (int, error) {
	return strconv.Atoi(c.Subject)
}

// BotRoles maps well-known service accounts to their elevated role.
type BotRoles struct {
	ProposalBotID int
	EventBotID    int
}

type TokenIssuer struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	issuer    string
	ttl       time.Duration
	bots      BotRoles
	now       func() time.Time
}

func NewTokenIssuer(cfg config.JWTConfig, bots BotRoles) (*TokenIssuer, error) {
	t := &TokenIssuer{issuer: cfg.Issuer, ttl: cfg.TTL, bots: bots, now: time.Now}
	if t.ttl <= 0 {
		t.ttl = time.Hour
	}

	if cfg.Asymmetric() {
		priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("parse jwt private key: %w", err)
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("parse jwt public key: %w", err)
		}
		t.method, t.signKey, t.verifyKey = jwt.SigningMethodRS256, priv, pub
		return t, nil
	}

	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	t.method, t.signKey, t.verifyKey = jwt.SigningMethodHS256, []byte(cfg.Secret), []byte(cfg.Secret)
	return t, nil
}

// NewRSATokenIssuer is used where keys are already parsed.
func NewRSATokenIssuer(priv *rsa.PrivateKey, ttl time.Duration, bots BotRoles) *TokenIssuer {
	return &TokenIssuer{
		method:    jwt.SigningMethodRS256,
		signKey:   priv,
		verifyKey: &priv.PublicKey,
		issuer:    "polkassembly",
		ttl:       ttl,
		bots:      bots,
		now:       time.Now,
	}
}

func (t *TokenIssuer) roles(userID int) ([]Role, Role) {
	switch {
	case t.bots.ProposalBotID != 0 && userID == t.bots.ProposalBotID:
		return []Role{RoleUser, RoleProposalBot}, RoleProposalBot
	case t.bots.EventBotID != 0 && userID == t.bots.EventBotID:
		return []Role{RoleUser, RoleEventBot}, RoleEventBot
	default:
		return []Role{RoleUser}, RoleUser
	}
}

// Issue signs a session token for u. addresses should be all of the user's
// rows; only verified ones end up in the claims.
func (t *TokenIssuer) Issue(u *User, addresses []Address) (string, error) {
	allowed, def := t.roles(u.ID)
	roleNames := make([]string, len(allowed))
	for i, r := range allowed {
		roleNames[i] = string(r)
	}

	hasura := HasuraClaims{
		"x-hasura-allowed-roles": roleNames,
		"x-hasura-default-role":  string(def),
		"x-hasura-user-id":       strconv.Itoa(u.ID),
		"x-hasura-user-email":    u.Email,
	}
	for _, n := range Networks() {
		list, defAddr := networkAddresses(addresses, n)
		hasura["x-hasura-"+string(n)] = list
		hasura["x-hasura-"+string(n)+"-default"] = defAddr
	}

	now := t.now()
	claims := Claims{
		Username:      u.Username,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Web3Signup:    u.Web3Signup,
		TFAEnabled:    u.TFAEnabled,
		Hasura:        hasura,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(u.ID),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	return jwt.NewWithClaims(t.method, claims).SignedString(t.signKey)
}

func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if tok.Method.Alg() != t.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", tok.Method.Alg())
		}
		return t.verifyKey, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// networkAddresses renders verified addresses of n as a Postgres array
// literal, plus the default address (empty when none).
func networkAddresses(addresses []Address, n Network) (string, string) {
	var list []string
	def := ""
	for _, a := range addresses {
		if a.Network != n || !a.Verified {
			continue
		}
		list = append(list, a.Address)
		if a.Default {
			def = a.Address
		}
	}
	return "{" + strings.Join(list, ",") + "}", def
}
