package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vovakirdan/wirechat-widget/internal/identity"
)

var (
	// ErrInvalidToken is returned when a token fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingToken is returned when no token was presented.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidUsername is returned when a display name doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
)

// Service issues and checks chat tokens.
type Service struct {
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(jwtConfig *JWTConfig) *Service {
	return &Service{jwtConfig: jwtConfig}
}

// Issue mints a token for name with the given role. An empty userID gets a
// generated one.
func (s *Service) Issue(userID, name string, role identity.Role) (identity.Identity, error) {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 32 {
		return identity.Identity{}, ErrInvalidUsername
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = uuid.NewString()
	}

	id := identity.Identity{ID: userID, DisplayName: name, Role: role}
	token, err := GenerateToken(s.jwtConfig, id)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("generate token: %w", err)
	}
	id.Token = token
	return id, nil
}

// IssueGuest mints a user-role token with a generated guest name.
func (s *Service) IssueGuest() (identity.Identity, error) {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return s.Issue("", "guest-"+suffix, identity.RoleUser)
}

// Authenticate validates token and returns the identity it carries.
func (s *Service) Authenticate(token string) (identity.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return identity.Identity{}, ErrMissingToken
	}
	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.Identity(token), nil
}
