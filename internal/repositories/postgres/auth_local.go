package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yolymatics/tutoring-service/internal/auth"
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
)

const sessionRevocationPrefix = "sid:"

// LocalAuthProvider keeps identities in the users table and issues its own
// JWT sessions. Access and refresh tokens of one sign-in share a session id;
// signing out revokes that id, which kills both.
type LocalAuthProvider struct {
	users               repositories.UserRepository
	tokens              *auth.TokenIssuer
	hasher              *auth.PasswordHasher
	revoked             *auth.RevocationList
	requireConfirmation bool
	now                 func() time.Time
}

func NewLocalAuthProvider(users repositories.UserRepository, tokens *auth.TokenIssuer, hasher *auth.PasswordHasher, revoked *auth.RevocationList, requireConfirmation bool) *LocalAuthProvider {
	return &LocalAuthProvider{
		users:               users,
		tokens:              tokens,
		hasher:              hasher,
		revoked:             revoked,
		requireConfirmation: requireConfirmation,
		now:                 time.Now,
	}
}

func (p *LocalAuthProvider) Name() string {
	return "local"
}

func (p *LocalAuthProvider) SignUp(ctx context.Context, params repositories.SignUpParams) (*models.SignUpResult, error) {
	email := normalizeEmail(params.Email)
	exists, err := p.users.ExistsByEmail(ctx, nil, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, repositories.ErrEmailTaken
	}

	hash, err := p.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Metadata:     datatypes.JSONMap(params.Metadata),
	}
	confirmed := params.Confirmed || !p.requireConfirmation
	if confirmed {
		now := p.now().UTC()
		user.EmailConfirmedAt = &now
	}

	if err := p.users.Create(ctx, nil, user); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, repositories.ErrEmailTaken
		}
		return nil, err
	}

	if !confirmed {
		token, _, err := p.tokens.Issue(auth.TokenConfirm, user.ID, user.Email, "")
		if err != nil {
			return nil, err
		}
		return &models.SignUpResult{User: user, ConfirmationToken: token}, nil
	}

	session, err := p.issueSession(user, uuid.NewString())
	if err != nil {
		return nil, err
	}
	return &models.SignUpResult{User: user, Session: session}, nil
}

func (p *LocalAuthProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	user, err := p.users.GetByEmail(ctx, nil, email)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, repositories.ErrInvalidCredentials
		}
		return nil, err
	}

	if !p.hasher.Verify(password, user.PasswordHash) {
		return nil, repositories.ErrInvalidCredentials
	}
	if p.requireConfirmation && !user.IsEmailConfirmed() {
		return nil, repositories.ErrEmailNotConfirmed
	}

	now := p.now().UTC()
	if err := p.users.TouchLastSignIn(ctx, nil, user.ID, now); err != nil {
		return nil, err
	}
	user.LastSignInAt = &now

	return p.issueSession(user, uuid.NewString())
}

func (p *LocalAuthProvider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := p.tokens.Parse(accessToken, auth.TokenAccess)
	if err != nil {
		return fmt.Errorf("%w: %v", repositories.ErrInvalidSession, err)
	}

	sessionExpiry := p.now().Add(p.tokens.RefreshTTL())
	if err := p.revoked.Revoke(ctx, sessionRevocationPrefix+claims.SessionID, sessionExpiry); err != nil {
		return err
	}
	return p.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (p *LocalAuthProvider) GetSession(ctx context.Context, accessToken string) (*models.Session, error) {
	claims, err := p.tokens.Parse(accessToken, auth.TokenAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrInvalidSession, err)
	}
	if err := p.checkRevoked(ctx, claims); err != nil {
		return nil, err
	}

	user, err := p.loadUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	return &models.Session{
		ID:          claims.SessionID,
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        user,
	}, nil
}

// RefreshSession rotates the refresh token: the presented one is claimed,
// so it works once even under concurrent use, and a new pair is issued under
// the same session id.
func (p *LocalAuthProvider) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	claims, err := p.tokens.Parse(refreshToken, auth.TokenRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrInvalidSession, err)
	}
	if err := p.checkRevoked(ctx, claims); err != nil {
		return nil, err
	}

	user, err := p.loadUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	if err := p.claim(ctx, claims); err != nil {
		return nil, err
	}
	return p.issueSession(user, claims.SessionID)
}

func (p *LocalAuthProvider) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return p.users.GetByID(ctx, nil, userID)
}

// ConfirmEmail redeems a single-use confirmation token.
func (p *LocalAuthProvider) ConfirmEmail(ctx context.Context, token string) (*models.Session, error) {
	claims, err := p.tokens.Parse(token, auth.TokenConfirm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrInvalidSession, err)
	}
	if err := p.checkRevoked(ctx, claims); err != nil {
		return nil, err
	}

	if err := p.claim(ctx, claims); err != nil {
		return nil, err
	}
	if err := p.users.MarkEmailConfirmed(ctx, nil, claims.Subject, p.now().UTC()); err != nil {
		return nil, err
	}

	user, err := p.loadUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return p.issueSession(user, uuid.NewString())
}

func (p *LocalAuthProvider) issueSession(user *models.User, sessionID string) (*models.Session, error) {
	access, accessClaims, err := p.tokens.Issue(auth.TokenAccess, user.ID, user.Email, sessionID)
	if err != nil {
		return nil, err
	}
	refresh, _, err := p.tokens.Issue(auth.TokenRefresh, user.ID, user.Email, sessionID)
	if err != nil {
		return nil, err
	}

	return &models.Session{
		ID:           sessionID,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    accessClaims.ExpiresAt.Time,
		User:         user,
	}, nil
}

func (p *LocalAuthProvider) checkRevoked(ctx context.Context, claims *auth.Claims) error {
	keys := []string{claims.ID}
	if claims.SessionID != "" {
		keys = append(keys, sessionRevocationPrefix+claims.SessionID)
	}
	for _, key := range keys {
		revoked, err := p.revoked.IsRevoked(ctx, key)
		if err != nil {
			return err
		}
		if revoked {
			return repositories.ErrInvalidSession
		}
	}
	return nil
}

// claim spends a single-use token. Losing the race reads as an invalid session.
func (p *LocalAuthProvider) claim(ctx context.Context, claims *auth.Claims) error {
	won, err := p.revoked.Claim(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return err
	}
	if !won {
		return repositories.ErrInvalidSession
	}
	return nil
}

func (p *LocalAuthProvider) loadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := p.users.GetByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, repositories.ErrInvalidSession
		}
		return nil, err
	}
	return user, nil
}
