// Package auth is the access control gate: it turns credentials into
// identities and identities into signed bearer tokens.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"taskmand/internal/audit"
	"taskmand/internal/fault"
	"taskmand/internal/models"
	"taskmand/internal/store"
)

// DefaultTokenTTL is used when the configured token lifetime is zero.
const DefaultTokenTTL = 15 * time.Minute

// Config carries the gate's settings. It is passed in explicitly at
// construction; there is no process-wide settings singleton.
type Config struct {
	SecretKey  string
	TokenTTL   time.Duration
	BcryptCost int
}

// Gate resolves credentials and tokens against the user store.
type Gate struct {
	store *store.Store
	audit *audit.Writer
	cfg   Config
}

// NewGate creates a new access control gate.
func NewGate(s *store.Store, aw *audit.Writer, cfg Config) *Gate {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Gate{store: s, audit: aw, cfg: cfg}
}

// Register creates a new non-admin user with a bcrypt-hashed password.
func (g *Gate) Register(username, password string) (*models.User, error) {
	return g.createUser(username, password, false)
}

// CreateAdmin creates a user with the admin flag set. Used by the
// admin bootstrap command, not exposed over HTTP.
func (g *Gate) CreateAdmin(username, password string) (*models.User, error) {
	return g.createUser(username, password, true)
}

// maxPasswordBytes is bcrypt's input limit; longer passwords make
// GenerateFromPassword fail.
const maxPasswordBytes = 72

func (g *Gate) createUser(username, password string, isAdmin bool) (*models.User, error) {
	if username == "" || password == "" {
		return nil, fault.Unprocessable("Username and password are required")
	}
	if len(password) > maxPasswordBytes {
		return nil, fault.Unprocessable("Password must be at most %d bytes", maxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	user, err := g.store.CreateUser(username, string(hash), isAdmin)
	if err == store.ErrUsernameTaken {
		return nil, fault.Conflict("Username already registered")
	}
	if err != nil {
		return nil, err
	}

	g.audit.Record("user.register", user.ID, "", "success", "")
	return user, nil
}

// IssueToken verifies the credential and returns a signed bearer token
// encoding the username and expiry. Unknown user and wrong password
// yield the identical fault so usernames cannot be enumerated.
func (g *Gate) IssueToken(username, password string) (string, error) {
	user, err := g.store.GetUserByUsername(username)
	if err != nil {
		return "", err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", fault.Unauthenticated("Invalid credentials")
	}

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   user.Username,
		ExpiresAt: jwt.NewNumericDate(now.Add(g.cfg.TokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(g.cfg.SecretKey))
	if err != nil {
		return "", err
	}

	g.audit.Record("user.login", user.ID, "", "success", "")
	return token, nil
}

// Authenticate parses and verifies a bearer token and resolves the
// encoded identity. Any malformed, expired, or badly signed token, or
// a subject that no longer exists, yields an authentication fault.
func (g *Gate) Authenticate(tokenString string) (*models.User, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fault.Unauthenticated("Invalid token")
		}
		return []byte(g.cfg.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, fault.Unauthenticated("Invalid token")
	}
	if claims.Subject == "" {
		return nil, fault.Unauthenticated("Invalid token payload")
	}

	user, err := g.store.GetUserByUsername(claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fault.Unauthenticated("User not found")
	}
	return user, nil
}

// RequireAdmin rejects non-admin identities.
func (g *Gate) RequireAdmin(user *models.User) error {
	if !user.IsAdmin {
		return fault.Permission("Admin access required")
	}
	return nil
}
