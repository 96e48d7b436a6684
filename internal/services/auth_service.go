package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/yolymatics/tutoring-service/internal/events"
	"github.com/yolymatics/tutoring-service/internal/mail"
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/validator"
)

type AuthService interface {
	SignUp(ctx context.Context, req *SignUpRequest) (*AuthResponse, error)
	SignIn(ctx context.Context, req *SignInRequest) (*AuthResponse, error)
	SignOut(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, req *RefreshRequest) (*AuthResponse, error)
	ConfirmEmail(ctx context.Context, req *ConfirmEmailRequest) (*AuthResponse, error)
	Me(ctx context.Context, state *models.AuthState) (*AuthResponse, error)
}

type AuthServiceConfig struct {
	LoginPath string
	// PublicURL is the externally visible base URL used in confirmation links.
	PublicURL string
}

type authService struct {
	repo      repositories.Repository
	bus       events.EventPublisher
	resolver  *SessionResolver
	mailer    mail.Mailer
	validator *validator.Validator
	logger    *slog.Logger
	config    AuthServiceConfig
}

func NewAuthService(
	repo repositories.Repository,
	bus events.EventPublisher,
	resolver *SessionResolver,
	mailer mail.Mailer,
	validator *validator.Validator,
	logger *slog.Logger,
	config AuthServiceConfig,
) AuthService {
	if config.LoginPath == "" {
		config.LoginPath = "/login"
	}
	return &authService{
		repo:      repo,
		bus:       bus,
		resolver:  resolver,
		mailer:    mailer,
		validator: validator,
		logger:    logger,
		config:    config,
	}
}

func (s *authService) SignUp(ctx context.Context, req *SignUpRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	s.logger.Info("Signing up", "email", req.Email, "provider", s.repo.Auth().Name())

	result, err := s.repo.Auth().SignUp(ctx, repositories.SignUpParams{
		Email:    req.Email,
		Password: req.Password,
		Metadata: map[string]interface{}{"full_name": req.FullName},
	})
	if err != nil {
		return nil, mapAuthError(err)
	}

	if result.Session == nil {
		if result.ConfirmationToken != "" {
			s.sendConfirmation(ctx, result.User, req.FullName, result.ConfirmationToken)
		}
		return &AuthResponse{
			User:                 result.User,
			RedirectTo:           s.config.LoginPath,
			ConfirmationRequired: true,
			Message:              "Check your email to confirm your account",
		}, nil
	}

	return s.signedIn(ctx, result.Session)
}

func (s *authService) SignIn(ctx context.Context, req *SignInRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, err := s.repo.Auth().SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		s.logger.Info("Sign-in rejected", "email", req.Email, "error", err)
		return nil, mapAuthError(err)
	}

	return s.signedIn(ctx, session)
}

func (s *authService) SignOut(ctx context.Context, accessToken string) error {
	session, err := s.repo.Auth().GetSession(ctx, accessToken)
	if err != nil {
		return mapAuthError(err)
	}

	if err := s.repo.Auth().SignOut(ctx, accessToken); err != nil {
		return mapAuthError(err)
	}

	event := models.AuthEvent{
		Type:       models.EventSignedOut,
		SessionID:  session.ID,
		PrevUserID: session.User.ID,
		OccurredAt: time.Now().UTC(),
	}
	s.publish(ctx, event)

	// Without a live subscriber nobody consumed the event; apply it here.
	if s.resolver.State(ctx, session.ID).Authenticated() {
		s.resolver.HandleEvent(ctx, event)
	}

	s.logger.Info("Signed out", "user_id", session.User.ID, "session_id", session.ID)
	return nil
}

func (s *authService) Refresh(ctx context.Context, req *RefreshRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, err := s.repo.Auth().RefreshSession(ctx, req.RefreshToken)
	if err != nil {
		return nil, mapAuthError(err)
	}

	return s.announce(ctx, authEvent(models.EventTokenRefreshed, session), session), nil
}

func (s *authService) ConfirmEmail(ctx context.Context, req *ConfirmEmailRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, err := s.repo.Auth().ConfirmEmail(ctx, req.Token)
	if err != nil {
		return nil, mapAuthError(err)
	}

	return s.signedIn(ctx, session)
}

func (s *authService) Me(ctx context.Context, state *models.AuthState) (*AuthResponse, error) {
	if !state.Authenticated() {
		return nil, ErrUnauthorized
	}
	return &AuthResponse{
		User:       state.User,
		Profile:    state.Profile,
		RedirectTo: s.redirectFor(state.Profile),
	}, nil
}

// signedIn announces a new session and returns the state the resolver built
// for it. Publish waits for the resolver, so the state is already recorded.
func (s *authService) signedIn(ctx context.Context, session *models.Session) (*AuthResponse, error) {
	resp := s.announce(ctx, authEvent(models.EventSignedIn, session), session)

	s.logger.Info("Signed in",
		"user_id", session.User.ID,
		"session_id", session.ID,
		"has_profile", resp.Profile != nil)
	return resp, nil
}

// announce publishes event and reports the state it produced. Without a live
// subscriber the event is applied here. Only a sign-in may fall back to the
// creating Resolve path; a refresh reports a deleted profile as missing.
func (s *authService) announce(ctx context.Context, event models.AuthEvent, session *models.Session) *AuthResponse {
	s.publish(ctx, event)

	state := s.resolver.State(ctx, session.ID)
	if !state.Authenticated() {
		state = s.resolver.HandleEvent(ctx, event)
	}
	if event.Type == models.EventSignedIn && state.Profile == nil && !state.Loading {
		state = s.resolver.Resolve(ctx, session.AccessToken)
	}

	return &AuthResponse{
		User:       session.User,
		Profile:    state.Profile,
		Session:    session,
		RedirectTo: s.redirectFor(state.Profile),
	}
}

func (s *authService) redirectFor(profile *models.Profile) string {
	if profile == nil {
		return s.config.LoginPath
	}
	return profile.Role.DashboardPath()
}

func (s *authService) publish(ctx context.Context, event models.AuthEvent) {
	if err := s.bus.Publish(ctx, events.TopicAuthState, events.NewEvent(events.EventAuthStateChanged, event)); err != nil {
		s.logger.Error("Failed to publish auth event", "error", err, "event", event.Type, "session_id", event.SessionID)
	}
}

func (s *authService) sendConfirmation(ctx context.Context, user *models.User, name, token string) {
	link := s.config.PublicURL + "/api/v1/auth/confirm?token=" + url.QueryEscape(token)
	msg, err := mail.ConfirmationMessage(name, user.Email, link)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.logger.Error("Failed to send confirmation email", "error", err, "user_id", user.ID)
	}
}

func authEvent(eventType models.AuthEventType, session *models.Session) models.AuthEvent {
	return models.AuthEvent{
		Type:       eventType,
		SessionID:  session.ID,
		User:       session.User,
		ExpiresAt:  session.ExpiresAt,
		OccurredAt: time.Now().UTC(),
	}
}

func mapAuthError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrInvalidCredentials):
		return ErrInvalidCredentials
	case errors.Is(err, repositories.ErrEmailTaken):
		return ErrEmailTaken
	case errors.Is(err, repositories.ErrEmailNotConfirmed):
		return ErrEmailNotConfirmed
	case errors.Is(err, repositories.ErrInvalidSession):
		return ErrInvalidSession
	case errors.Is(err, repositories.ErrUnsupported):
		return ErrUnsupported
	default:
		return fmt.Errorf("auth provider: %w", err)
	}
}
