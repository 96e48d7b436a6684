package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/models"
)

// Auth provider errors
var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrUnsupported        = errors.New("operation not supported by auth provider")
)

type SignUpParams struct {
	Email    string
	Password string
	Metadata map[string]interface{}
	// Confirmed skips email confirmation (admin bootstrap).
	Confirmed bool
}

// AuthProvider is the remote authentication API: identities, credentials and
// sessions. Implementations do not touch application profiles.
type AuthProvider interface {
	Name() string

	SignUp(ctx context.Context, params SignUpParams) (*models.SignUpResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error

	// GetSession validates an access token and returns the session it belongs to.
	GetSession(ctx context.Context, accessToken string) (*models.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// ConfirmEmail redeems a confirmation token and opens a session.
	ConfirmEmail(ctx context.Context, token string) (*models.Session, error)
}

// UserRepository stores identities for the local auth provider.
type UserRepository interface {
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error)
	Update(ctx context.Context, tx *gorm.DB, user *models.User) error
	ExistsByEmail(ctx context.Context, tx *gorm.DB, email string) (bool, error)
	MarkEmailConfirmed(ctx context.Context, tx *gorm.DB, id string, at time.Time) error
	TouchLastSignIn(ctx context.Context, tx *gorm.DB, id string, at time.Time) error
}
