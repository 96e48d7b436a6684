package casdoor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/datatypes"

	"github.com/yolymatics/tutoring-service/internal/auth"
	"github.com/yolymatics/tutoring-service/internal/cache"
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// AuthCasdoor delegates identities and sessions to a Casdoor server.
// Sessions are Casdoor-issued JWTs; sign-out is enforced locally through the
// revocation list since Casdoor access tokens cannot be recalled.
type AuthCasdoor struct {
	client  *casdoorsdk.Client
	oauth   *oauth2.Config
	users   *cache.CacheHelper
	revoked *auth.RevocationList
	config  CasdoorConfig

	cacheTTL time.Duration
}

func NewAuthCasdoor(config CasdoorConfig, users *cache.CacheHelper, revoked *auth.RevocationList) *AuthCasdoor {
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)

	endpoint := strings.TrimRight(config.Endpoint, "/")
	return &AuthCasdoor{
		client: client,
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   endpoint + "/login/oauth/authorize",
				TokenURL:  endpoint + "/api/login/oauth/access_token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"openid", "profile", "email"},
		},
		users:    users,
		revoked:  revoked,
		config:   config,
		cacheTTL: cache.UserCacheConfig.TTL,
	}
}

func (a *AuthCasdoor) Name() string {
	return "casdoor"
}

// ===== AUTH OPERATIONS =====

func (a *AuthCasdoor) SignUp(ctx context.Context, params repositories.SignUpParams) (*models.SignUpResult, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	fullName, _ := params.Metadata["full_name"].(string)

	casdoorUser := &casdoorsdk.User{
		Owner:         a.config.OrganizationName,
		Name:          casdoorUserName(email),
		CreatedTime:   time.Now().UTC().Format(time.RFC3339),
		Type:          "normal-user",
		Password:      params.Password,
		DisplayName:   fullName,
		Email:         email,
		EmailVerified: params.Confirmed,
	}

	ok, err := a.client.AddUser(casdoorUser)
	if err != nil {
		return nil, fmt.Errorf("failed to add user to Casdoor: %w", err)
	}
	if !ok {
		return nil, repositories.ErrEmailTaken
	}

	session, err := a.SignInWithPassword(ctx, email, params.Password)
	if err != nil {
		// The account exists but cannot sign in yet (e.g. pending verification).
		user := a.convertCasdoorUserToModel(casdoorUser)
		return &models.SignUpResult{User: user}, nil
	}
	return &models.SignUpResult{User: session.User, Session: session}, nil
}

func (a *AuthCasdoor) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	token, err := a.oauth.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, repositories.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("casdoor password grant: %w", err)
	}
	return a.sessionFromToken(ctx, token.AccessToken, token.RefreshToken)
}

func (a *AuthCasdoor) SignOut(ctx context.Context, accessToken string) error {
	claims, err := a.client.ParseJwtToken(accessToken)
	if err != nil {
		return fmt.Errorf("%w: %v", repositories.ErrInvalidSession, err)
	}
	return a.revoked.Revoke(ctx, sessionID(claims, accessToken), expiry(claims))
}

func (a *AuthCasdoor) GetSession(ctx context.Context, accessToken string) (*models.Session, error) {
	return a.sessionFromToken(ctx, accessToken, "")
}

func (a *AuthCasdoor) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	token, err := a.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrInvalidSession, err)
	}
	return a.sessionFromToken(ctx, token.AccessToken, token.RefreshToken)
}

// ConfirmEmail is handled by Casdoor's own verification flow.
func (a *AuthCasdoor) ConfirmEmail(ctx context.Context, token string) (*models.Session, error) {
	return nil, repositories.ErrUnsupported
}

// GetUser retrieves a user by ID, cached
func (a *AuthCasdoor) GetUser(ctx context.Context, userID string) (*models.User, error) {
	cacheKey := "id:" + userID
	var cached models.User
	if err := a.users.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	casdoorUser, err := a.client.GetUserByUserId(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
	}
	if casdoorUser == nil {
		return nil, fmt.Errorf("casdoor user %s: %w", userID, repositories.ErrNotFound)
	}

	user := a.convertCasdoorUserToModel(casdoorUser)
	cache.SafeSet(ctx, a.users, cacheKey, user, a.cacheTTL)
	return user, nil
}

func (a *AuthCasdoor) sessionFromToken(ctx context.Context, accessToken, refreshToken string) (*models.Session, error) {
	claims, err := a.client.ParseJwtToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrInvalidSession, err)
	}
	if claims.User.Id == "" {
		return nil, repositories.ErrInvalidSession
	}

	sid := sessionID(claims, accessToken)
	revoked, err := a.revoked.IsRevoked(ctx, sid)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, repositories.ErrInvalidSession
	}

	user := a.convertCasdoorUserToModel(&claims.User)
	cache.SafeSet(ctx, a.users, "id:"+user.ID, user, a.cacheTTL)

	return &models.Session{
		ID:           sid,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresAt:    expiry(claims),
		User:         user,
	}, nil
}

// ===== CONVERSION METHODS =====

func (a *AuthCasdoor) convertCasdoorUserToModel(casdoorUser *casdoorsdk.User) *models.User {
	if casdoorUser == nil {
		return nil
	}

	metadata := datatypes.JSONMap{}
	if casdoorUser.DisplayName != "" {
		metadata["full_name"] = casdoorUser.DisplayName
	}
	if casdoorUser.Avatar != "" {
		metadata["avatar_url"] = casdoorUser.Avatar
	}

	user := &models.User{
		ID:       casdoorUser.Id,
		Email:    casdoorUser.Email,
		Metadata: metadata,
	}
	if casdoorUser.CreatedTime != "" {
		user.CreatedAt, _ = time.Parse(time.RFC3339, casdoorUser.CreatedTime)
	}
	if casdoorUser.UpdatedTime != "" {
		user.UpdatedAt, _ = time.Parse(time.RFC3339, casdoorUser.UpdatedTime)
	}
	if casdoorUser.EmailVerified {
		confirmed := user.CreatedAt
		user.EmailConfirmedAt = &confirmed
	}
	return user
}

// sessionID is the token's jti, or a digest of the token when Casdoor omits one.
func sessionID(claims *casdoorsdk.Claims, accessToken string) string {
	if claims.RegisteredClaims.ID != "" {
		return claims.RegisteredClaims.ID
	}
	sum := sha256.Sum256([]byte(accessToken))
	return hex.EncodeToString(sum[:16])
}

func expiry(claims *casdoorsdk.Claims) time.Time {
	if claims.RegisteredClaims.ExpiresAt == nil {
		return time.Now().Add(time.Hour)
	}
	return claims.RegisteredClaims.ExpiresAt.Time
}

func casdoorUserName(email string) string {
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	return local + "-" + uuid.NewString()[:8]
}
