// Package auth validates bearer tokens and checks that the user may chat.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pelusa-v/roomchat/internal/chat"
	"github.com/pelusa-v/roomchat/internal/data"
)

type Claims struct {
	UserID int64 `json:"id"`
	jwt.RegisteredClaims
}

type UserStore interface {
	GetUser(ctx context.Context, id int64) (*data.User, error)
}

// Identity is an authenticated, admitted user.
type Identity struct {
	UserID     int64
	FirstName  string
	PublicUser bool
}

type Authenticator struct {
	secret []byte
	store  UserStore
	method jwt.SigningMethod
}

// New signs and verifies with HS512 unless method names another HMAC algorithm.
func New(secret string, store UserStore, method string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("auth: empty secret")
	}
	m := jwt.SigningMethodHS512
	if method != "" {
		hm, ok := jwt.GetSigningMethod(method).(*jwt.SigningMethodHMAC)
		if !ok {
			return nil, fmt.Errorf("auth: unsupported signing method %q", method)
		}
		m = hm
	}
	return &Authenticator{secret: []byte(secret), store: store, method: m}, nil
}

// Authenticate maps a missing token to ErrAuthRequired, a bad token or unknown
// user to ErrAuthInvalid and a flagged user to ErrAccessDenied.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, chat.ErrAuthRequired
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{a.method.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chat.ErrAuthInvalid, err)
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("%w: missing user id", chat.ErrAuthInvalid)
	}

	u, err := a.store.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chat.ErrPersistence, err)
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %d not found", chat.ErrAuthInvalid, claims.UserID)
	}
	if u.Flagged {
		return nil, fmt.Errorf("%w: user %d", chat.ErrAccessDenied, u.ID)
	}
	return &Identity{UserID: u.ID, FirstName: u.FirstName, PublicUser: u.PublicUser}, nil
}

// Issue signs a token for userID. ttl <= 0 issues a token without expiry.
func (a *Authenticator) Issue(userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{UserID: userID, RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(now)}}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(a.method, claims).SignedString(a.secret)
}
