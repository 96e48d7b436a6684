package services

import (
	"context"
	"testing"
	"time"

	"github.com/matthewhartstonge/argon2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/auth"
	"github.com/yolymatics/tutoring-service/internal/cache"
	"github.com/yolymatics/tutoring-service/internal/events"
	"github.com/yolymatics/tutoring-service/internal/mail"
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/repositories/postgres"
	"github.com/yolymatics/tutoring-service/internal/testutil"
	"github.com/yolymatics/tutoring-service/internal/validator"
)

const testPassword = "s3cret-passw0rd"

// harness is a service stack over SQLite and miniredis with the local auth provider.
type harness struct {
	t          *testing.T
	db         *gorm.DB
	repo       repositories.Repository
	cache      *cache.CacheManager
	bus        *events.Bus
	domain     *events.MockEventPublisher
	authorizer *Authorizer
	validator  *validator.Validator
	resolver   *SessionResolver
	auth       AuthService
}

type harnessOptions struct {
	requireConfirmation bool
	mailer              mail.Mailer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, harnessOptions{})
}

func newHarnessWith(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	client, _ := testutil.NewRedis(t)
	cm := cache.NewCacheManager(client)
	logger := testutil.Logger()

	hashConfig := argon2.DefaultConfig()
	hashConfig.MemoryCost = 8 * 1024
	hashConfig.TimeCost = 1

	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{
		DB:           db,
		CacheManager: cm,
		Tokens:       auth.NewTokenIssuer("test-secret", "tutoring-test", 15*time.Minute, 24*time.Hour, time.Hour),
		Hasher:       auth.NewPasswordHasher(hashConfig),

		RequireEmailConfirmation: opts.requireConfirmation,
	})

	authorizer, err := NewAuthorizer()
	require.NoError(t, err)

	bus := events.NewBus(logger)
	t.Cleanup(func() { _ = bus.Close() })

	domain := events.NewMockEventPublisher(logger)
	v := validator.New()
	resolver := NewSessionResolver(repo, bus, cm, domain, logger)
	if opts.mailer == nil {
		opts.mailer = mail.NewLogMailer(logger)
	}

	return &harness{
		t:          t,
		db:         db,
		repo:       repo,
		cache:      cm,
		bus:        bus,
		domain:     domain,
		authorizer: authorizer,
		validator:  v,
		resolver:   resolver,
		auth:       NewAuthService(repo, bus, resolver, opts.mailer, v, logger, AuthServiceConfig{LoginPath: "/login", PublicURL: "http://tutoring.test"}),
	}
}

// startResolver subscribes the resolver to the bus for the rest of the test.
func (h *harness) startResolver() {
	h.t.Helper()
	require.NoError(h.t, h.resolver.Start(context.Background()))
	h.t.Cleanup(func() { _ = h.resolver.Close() })
}

// member signs a new user up and gives their profile role.
func (h *harness) member(email, name string, role models.Role) (Actor, *models.Session) {
	h.t.Helper()
	ctx := context.Background()

	resp, err := h.auth.SignUp(ctx, &SignUpRequest{Email: email, Password: testPassword, FullName: name})
	require.NoError(h.t, err)
	require.NotNil(h.t, resp.Session)

	if _, err := h.repo.Profile().GetByUserID(ctx, nil, resp.User.ID); err != nil {
		h.resolver.Resolve(ctx, resp.Session.AccessToken)
	}

	if role != models.DefaultRole {
		require.NoError(h.t, h.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
			if err := h.repo.Profile().UpdateRole(ctx, tx, resp.User.ID, role); err != nil {
				return err
			}
			return ensureRoleRow(ctx, h.repo, tx, resp.User.ID, role)
		}))
		cache.InvalidateProfileCache(ctx, h.cache, resp.User.ID)
	}

	return Actor{UserID: resp.User.ID, Email: resp.User.Email, Role: role}, resp.Session
}

func (h *harness) studentRow(actor Actor) *models.Student {
	h.t.Helper()
	student, err := h.repo.Student().GetByUserID(context.Background(), nil, actor.UserID)
	require.NoError(h.t, err)
	return student
}

func (h *harness) tutorRow(actor Actor) *models.Tutor {
	h.t.Helper()
	tutor, err := h.repo.Tutor().GetByUserID(context.Background(), nil, actor.UserID)
	require.NoError(h.t, err)
	return tutor
}

func (h *harness) lessons() LessonService {
	return NewLessonService(h.repo, h.cache, h.authorizer, h.domain, h.validator, testutil.Logger())
}

func (h *harness) homework() HomeworkService {
	return NewHomeworkService(h.repo, h.cache, h.authorizer, h.domain, h.validator, testutil.Logger())
}

func (h *harness) members() MemberService {
	return NewMemberService(h.repo, h.cache, h.authorizer, h.validator, testutil.Logger())
}

func (h *harness) profiles() ProfileService {
	return NewProfileService(h.repo, h.cache, h.authorizer, h.domain, h.validator, testutil.Logger())
}

func (h *harness) feedback() FeedbackService {
	return NewFeedbackService(h.repo, h.cache, h.authorizer, h.domain, h.validator, testutil.Logger())
}

func (h *harness) countRows(table string) int64 {
	h.t.Helper()
	var n int64
	require.NoError(h.t, h.db.Table(table).Count(&n).Error)
	return n
}
