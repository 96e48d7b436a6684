package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yolymatics/tutoring-service/internal/cache"
	"github.com/yolymatics/tutoring-service/internal/events"
	"github.com/yolymatics/tutoring-service/internal/mail"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/storage"
	"github.com/yolymatics/tutoring-service/internal/validator"
)

// EventBus is what the services need from the event stream: auth events are
// published and consumed in-process, domain events are only published.
type EventBus interface {
	events.EventPublisher
	events.EventSubscriber
}

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	Auth          AuthServiceConfig
	MaxUploadSize int64

	// SubscribeResolver starts the resolver's subscription during Initialize.
	// Tests that drive HandleEvent directly leave it off.
	SubscribeResolver bool
}

// Dependencies are the infrastructure pieces shared by the services.
type Dependencies struct {
	Repo      repositories.Repository
	Cache     *cache.CacheManager
	Bus       EventBus
	Store     storage.Store
	Mailer    mail.Mailer
	Validator *validator.Validator
	Logger    *slog.Logger
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   Dependencies
	config ServiceManagerConfig
	logger *slog.Logger

	authorizer *Authorizer
	resolver   *SessionResolver

	authService      AuthService
	profileService   ProfileService
	memberService    MemberService
	lessonService    LessonService
	homeworkService  HomeworkService
	feedbackService  FeedbackService
	fileService      FileService
	dashboardService DashboardService
	reportService    ReportService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(deps Dependencies, config ServiceManagerConfig) ServiceManager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewCacheManager(nil)
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Mailer == nil {
		deps.Mailer = mail.NewLogMailer(deps.Logger)
	}
	return &serviceManager{
		deps:   deps,
		config: config,
		logger: deps.Logger,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.deps.Repo == nil || sm.deps.Bus == nil {
		return fmt.Errorf("service manager requires a repository and an event bus")
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.initializeServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if sm.config.SubscribeResolver {
		if err := sm.resolver.Start(ctx); err != nil {
			return fmt.Errorf("failed to start session resolver: %w", err)
		}
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")
	return nil
}

func (sm *serviceManager) initializeServices() error {
	authorizer, err := NewAuthorizer()
	if err != nil {
		return err
	}
	sm.authorizer = authorizer

	d := sm.deps
	sm.resolver = NewSessionResolver(d.Repo, d.Bus, d.Cache, d.Bus, d.Logger)
	sm.authService = NewAuthService(d.Repo, d.Bus, sm.resolver, d.Mailer, d.Validator, d.Logger, sm.config.Auth)

	sm.profileService = NewProfileService(d.Repo, d.Cache, authorizer, d.Bus, d.Validator, d.Logger)
	sm.memberService = NewMemberService(d.Repo, d.Cache, authorizer, d.Validator, d.Logger)
	sm.lessonService = NewLessonService(d.Repo, d.Cache, authorizer, d.Bus, d.Validator, d.Logger)
	sm.homeworkService = NewHomeworkService(d.Repo, d.Cache, authorizer, d.Bus, d.Validator, d.Logger)
	sm.feedbackService = NewFeedbackService(d.Repo, d.Cache, authorizer, d.Bus, d.Validator, d.Logger)
	sm.dashboardService = NewDashboardService(d.Repo, d.Cache, d.Logger)
	sm.reportService = NewReportService(d.Repo, authorizer, d.Logger)

	if d.Store != nil {
		sm.fileService = NewFileService(d.Repo, d.Store, authorizer, d.Bus, d.Logger, sm.config.MaxUploadSize)
		sm.logger.Info("File service initialized", "store", d.Store.Name())
	}

	return nil
}

// get returns svc once the manager is initialized and panics otherwise.
// A missing service is a wiring bug, not a runtime condition.
func get[T any](sm *serviceManager, name string, svc T, present bool) T {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	if !present {
		panic(name + " service not initialized")
	}
	return svc
}

func (sm *serviceManager) Auth() AuthService {
	return get(sm, "auth", sm.authService, sm.authService != nil)
}

func (sm *serviceManager) Resolver() *SessionResolver {
	return get(sm, "session resolver", sm.resolver, sm.resolver != nil)
}

func (sm *serviceManager) Authorizer() *Authorizer {
	return get(sm, "authorizer", sm.authorizer, sm.authorizer != nil)
}

func (sm *serviceManager) Profile() ProfileService {
	return get(sm, "profile", sm.profileService, sm.profileService != nil)
}

func (sm *serviceManager) Member() MemberService {
	return get(sm, "member", sm.memberService, sm.memberService != nil)
}

func (sm *serviceManager) Lesson() LessonService {
	return get(sm, "lesson", sm.lessonService, sm.lessonService != nil)
}

func (sm *serviceManager) Homework() HomeworkService {
	return get(sm, "homework", sm.homeworkService, sm.homeworkService != nil)
}

func (sm *serviceManager) Feedback() FeedbackService {
	return get(sm, "feedback", sm.feedbackService, sm.feedbackService != nil)
}

func (sm *serviceManager) File() FileService {
	return get(sm, "file", sm.fileService, sm.fileService != nil)
}

func (sm *serviceManager) Dashboard() DashboardService {
	return get(sm, "dashboard", sm.dashboardService, sm.dashboardService != nil)
}

func (sm *serviceManager) Report() ReportService {
	return get(sm, "report", sm.reportService, sm.reportService != nil)
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	if err := sm.deps.Cache.HealthCheck(ctx); err != nil {
		return err
	}
	return nil
}

// Shutdown stops the resolver before the bus so no event is left half applied.
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	var errs []error
	if sm.resolver != nil {
		if err := sm.resolver.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session resolver: %w", err))
		}
	}
	if err := sm.deps.Bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close event bus: %w", err))
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")
	return errors.Join(errs...)
}
