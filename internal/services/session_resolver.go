package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/cache"
	"github.com/yolymatics/tutoring-service/internal/events"
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
)

// sessionRecord is what the state cache keeps per session. The profile is
// looked up on read so role changes show up without touching every session.
type sessionRecord struct {
	User      *models.User `json:"user"`
	Loading   bool         `json:"loading"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// SessionResolver keeps the auth state of every live session and makes sure
// a profile exists for each signed-in user. It follows the auth-state topic
// of the event bus; Start and Close bound that subscription.
type SessionResolver struct {
	repo      repositories.Repository
	bus       events.EventSubscriber
	states    *cache.CacheHelper
	profiles  *cache.CacheHelper
	publisher events.EventPublisher
	logger    *slog.Logger

	group    singleflight.Group
	stateTTL time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSessionResolver(
	repo repositories.Repository,
	bus events.EventSubscriber,
	cacheManager *cache.CacheManager,
	publisher events.EventPublisher,
	logger *slog.Logger,
) *SessionResolver {
	return &SessionResolver{
		repo:      repo,
		bus:       bus,
		states:    cacheManager.State,
		profiles:  cacheManager.Profile,
		publisher: publisher,
		logger:    logger.With("component", "session_resolver"),
		stateTTL:  cache.StateCacheConfig.TTL,
	}
}

// Start subscribes to auth-state events. Events are applied one at a time in
// publish order, so a sign-out is never overtaken by the sign-in before it.
func (r *SessionResolver) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return fmt.Errorf("session resolver already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	msgs, err := r.bus.Subscribe(runCtx, events.TopicAuthState)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to %s: %w", events.TopicAuthState, err)
	}

	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(runCtx, msgs, r.done)

	r.logger.Info("Session resolver started")
	return nil
}

// Close unsubscribes and waits for the event in flight, if any.
func (r *SessionResolver) Close() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	r.logger.Info("Session resolver stopped")
	return nil
}

func (r *SessionResolver) run(ctx context.Context, msgs <-chan *message.Message, done chan struct{}) {
	defer close(done)

	for msg := range msgs {
		event, err := events.FromMessage(msg)
		if err != nil {
			r.logger.Error("Dropping malformed auth event", "error", err, "message_id", msg.UUID)
			msg.Ack()
			continue
		}

		var authEvent models.AuthEvent
		if err := event.DecodeData(&authEvent); err != nil {
			r.logger.Error("Dropping auth event with bad payload", "error", err, "event_id", event.ID)
			msg.Ack()
			continue
		}

		r.HandleEvent(ctx, authEvent)
		msg.Ack()
	}
}

// HandleEvent applies one auth-state change and returns the resulting state.
// A profile is only created on SIGNED_IN; other events just look it up.
func (r *SessionResolver) HandleEvent(ctx context.Context, event models.AuthEvent) *models.AuthState {
	log := r.logger.With("event", event.Type, "session_id", event.SessionID)

	if event.User == nil || event.Type == models.EventSignedOut {
		r.clear(ctx, event.SessionID)
		log.Debug("Session cleared")
		return &models.AuthState{}
	}

	r.store(ctx, event.SessionID, sessionRecord{User: event.User, Loading: true})

	profile := r.profileFor(ctx, event.User, event.Type == models.EventSignedIn)
	r.store(ctx, event.SessionID, sessionRecord{User: event.User})

	log.Debug("Session resolved", "user_id", event.User.ID, "has_profile", profile != nil)
	return &models.AuthState{User: event.User, Profile: profile}
}

// Resolve builds the state for a bearer token: the session is read from the
// auth provider and the profile fetched, or created when missing.
func (r *SessionResolver) Resolve(ctx context.Context, accessToken string) *models.AuthState {
	if accessToken == "" {
		return &models.AuthState{}
	}

	session, err := r.repo.Auth().GetSession(ctx, accessToken)
	if err != nil {
		if !errors.Is(err, repositories.ErrInvalidSession) {
			r.logger.Warn("Failed to read session", "error", err)
		}
		return &models.AuthState{}
	}

	if record, ok := r.lookup(ctx, session.ID); ok && record.Loading && record.User != nil && record.User.ID == session.User.ID {
		return &models.AuthState{User: session.User, Session: session, Loading: true}
	}

	profile := r.profileFor(ctx, session.User, true)
	r.store(ctx, session.ID, sessionRecord{User: session.User})

	return &models.AuthState{User: session.User, Session: session, Profile: profile}
}

// State returns the last state recorded for a session. Unknown sessions read
// as signed out.
func (r *SessionResolver) State(ctx context.Context, sessionID string) *models.AuthState {
	record, ok := r.lookup(ctx, sessionID)
	if !ok || record.User == nil {
		return &models.AuthState{}
	}
	if record.Loading {
		return &models.AuthState{User: record.User, Loading: true}
	}
	return &models.AuthState{User: record.User, Profile: r.profileFor(ctx, record.User, false)}
}

// profileFor fetches the profile of user, creating it when create is set.
// Failures are logged and yield nil, which routes the user to login.
func (r *SessionResolver) profileFor(ctx context.Context, user *models.User, create bool) *models.Profile {
	var cached models.Profile
	if err := r.profiles.Get(ctx, profileCacheKey(user.ID), &cached); err == nil {
		return &cached
	}

	key := "get:" + user.ID
	if create {
		key = "create:" + user.ID
	}

	// Callers share the result, so one caller going away must not fail the rest.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		profile, err := r.repo.Profile().GetByUserID(shared, nil, user.ID)
		if err == nil {
			return profile, nil
		}
		if !repositories.IsNotFoundError(err) {
			return nil, err
		}
		if !create {
			return nil, nil
		}
		return r.createProfile(shared, user)
	})
	if err != nil {
		r.logger.Error("Failed to resolve profile", "error", err, "user_id", user.ID, "create", create)
		return nil
	}

	profile, _ := v.(*models.Profile)
	if profile == nil {
		return nil
	}
	cache.SafeSet(ctx, r.profiles, profileCacheKey(user.ID), profile, cache.ProfileCacheConfig.TTL)

	out := *profile
	return &out
}

func (r *SessionResolver) createProfile(ctx context.Context, user *models.User) (*models.Profile, error) {
	var (
		stored  *models.Profile
		created bool
	)
	err := r.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		stored, created, err = r.repo.Profile().CreateIfAbsent(ctx, tx, &models.Profile{
			UserID:   user.ID,
			Email:    user.Email,
			FullName: user.DisplayName(),
			Role:     models.DefaultRole,
		})
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		return ensureRoleRow(ctx, r.repo, tx, stored.UserID, stored.Role)
	})
	if err != nil {
		return nil, fmt.Errorf("create profile for %s: %w", user.ID, err)
	}

	if created {
		r.logger.Info("Profile created", "user_id", user.ID, "profile_id", stored.ID, "role", stored.Role)
		publishEvent(ctx, r.publisher, r.logger, events.EventProfileCreated, events.ProfileEventData{
			ProfileID: stored.ID,
			UserID:    stored.UserID,
			Role:      stored.Role.String(),
		})
	}
	return stored, nil
}

func (r *SessionResolver) lookup(ctx context.Context, sessionID string) (sessionRecord, bool) {
	var record sessionRecord
	if sessionID == "" {
		return record, false
	}
	if err := r.states.Get(ctx, sessionID, &record); err != nil {
		if !errors.Is(err, cache.ErrCacheNotFound) && !errors.Is(err, cache.ErrCacheNotAvailable) {
			r.logger.Warn("Failed to read session state", "error", err, "session_id", sessionID)
		}
		return record, false
	}
	return record, true
}

func (r *SessionResolver) store(ctx context.Context, sessionID string, record sessionRecord) {
	if sessionID == "" {
		return
	}
	record.UpdatedAt = time.Now().UTC()
	cache.SafeSet(ctx, r.states, sessionID, record, r.stateTTL)
}

func (r *SessionResolver) clear(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	cache.SafeDelete(ctx, r.states, sessionID)
}

func profileCacheKey(userID string) string {
	return "user:" + userID
}

// ensureRoleRow creates the students/tutors/parents row matching role.
func ensureRoleRow(ctx context.Context, repo repositories.Repository, tx *gorm.DB, userID string, role models.UserRole) error {
	var err error
	switch role {
	case models.RoleStudent:
		_, err = repo.Student().EnsureForUser(ctx, tx, userID)
	case models.RoleTutor:
		_, err = repo.Tutor().EnsureForUser(ctx, tx, userID)
	case models.RoleParent:
		_, err = repo.Parent().EnsureForUser(ctx, tx, userID)
	}
	return err
}

// publishEvent sends a domain event. Delivery is best effort: failures are
// logged and never fail the operation that produced the event.
func publishEvent(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, eventType events.EventType, data interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, events.TopicDomain, events.NewEvent(eventType, data)); err != nil {
		logger.Error("Failed to publish event", "error", err, "event_type", eventType)
	}
}
