package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/auth"
	"github.com/yolymatics/tutoring-service/internal/cache"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/repositories/casdoor"
)

const (
	ProviderLocal   = "local"
	ProviderCasdoor = "casdoor"
)

// PostgreSQLRepository implements the main Repository interface
type PostgreSQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.CacheManager

	auth      repositories.AuthProvider
	user      repositories.UserRepository
	profile   repositories.ProfileRepository
	student   repositories.StudentRepository
	tutor     repositories.TutorRepository
	parent    repositories.ParentRepository
	lesson    repositories.LessonRepository
	homework  repositories.HomeworkRepository
	feedback  repositories.FeedbackRepository
	file      repositories.FileRepository
	dashboard repositories.DashboardRepository
}

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	DB           *gorm.DB
	RedisClient  *redis.Client
	CacheManager *cache.CacheManager

	// AuthProviderName selects ProviderLocal or ProviderCasdoor.
	AuthProviderName         string
	CasdoorConfig            casdoor.CasdoorConfig
	Tokens                   *auth.TokenIssuer
	Hasher                   *auth.PasswordHasher
	RequireEmailConfirmation bool

	// AuthProvider, when set, is used instead of building one.
	AuthProvider repositories.AuthProvider
}

// NewPostgreSQLRepository creates the repository aggregate with all sub-repositories
func NewPostgreSQLRepository(config RepositoryConfig) repositories.Repository {
	cacheManager := config.CacheManager
	if cacheManager == nil {
		cacheManager = cache.NewCacheManager(config.RedisClient)
	}

	repo := &PostgreSQLRepository{
		db:           config.DB,
		redisClient:  config.RedisClient,
		cacheManager: cacheManager,
		user:         NewUserPostgreSQL(config.DB),
		profile:      NewProfilePostgreSQL(config.DB),
		student:      NewStudentPostgreSQL(config.DB),
		tutor:        NewTutorPostgreSQL(config.DB),
		parent:       NewParentPostgreSQL(config.DB),
		lesson:       NewLessonPostgreSQL(config.DB),
		homework:     NewHomeworkPostgreSQL(config.DB),
		feedback:     NewFeedbackPostgreSQL(config.DB),
		file:         NewFilePostgreSQL(config.DB),
		dashboard:    NewDashboardRepository(config.DB),
	}
	repo.auth = config.AuthProvider
	if repo.auth == nil {
		repo.auth = newAuthProvider(config, repo.user, cacheManager)
	}

	return repo
}

func newAuthProvider(config RepositoryConfig, users repositories.UserRepository, cm *cache.CacheManager) repositories.AuthProvider {
	revoked := auth.NewRevocationList(cm.Revoked)
	if config.AuthProviderName == ProviderCasdoor {
		return casdoor.NewAuthCasdoor(config.CasdoorConfig, cm.User, revoked)
	}

	hasher := config.Hasher
	if hasher == nil {
		hasher = auth.DefaultPasswordHasher()
	}
	return NewLocalAuthProvider(users, config.Tokens, hasher, revoked, config.RequireEmailConfirmation)
}

func (r *PostgreSQLRepository) Auth() repositories.AuthProvider { return r.auth }
func (r *PostgreSQLRepository) User() repositories.UserRepository { return r.user }
func (r *PostgreSQLRepository) Profile() repositories.ProfileRepository { return r.profile }
func (r *PostgreSQLRepository) Student() repositories.StudentRepository { return r.student }
func (r *PostgreSQLRepository) Tutor() repositories.TutorRepository { return r.tutor }
func (r *PostgreSQLRepository) Parent() repositories.ParentRepository { return r.parent }
func (r *PostgreSQLRepository) Lesson() repositories.LessonRepository { return r.lesson }
func (r *PostgreSQLRepository) Homework() repositories.HomeworkRepository { return r.homework }
func (r *PostgreSQLRepository) Feedback() repositories.FeedbackRepository { return r.feedback }
func (r *PostgreSQLRepository) File() repositories.FileRepository { return r.file }
func (r *PostgreSQLRepository) Dashboard() repositories.DashboardRepository { return r.dashboard }

func (r *PostgreSQLRepository) DB() *gorm.DB {
	return r.db
}

// CacheManager exposes the caches shared with the service layer.
func (r *PostgreSQLRepository) CacheManager() *cache.CacheManager {
	return r.cacheManager
}

// WithTransaction executes fn within a database transaction. Repository
// methods called with the given tx join it.
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// Ping checks the health of database and cache connections
func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := r.cacheManager.HealthCheck(ctx); err != nil {
		return fmt.Errorf("cache ping failed: %w", err)
	}
	return nil
}

// Close closes all connections
func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}
	return nil
}

// RepositoryManager implements the RepositoryManager interface
type RepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

// NewRepositoryManager creates a new repository manager
func NewRepositoryManager(config RepositoryConfig) *RepositoryManager {
	return &RepositoryManager{config: config}
}

// Initialize verifies connections and builds the repository aggregate
func (rm *RepositoryManager) Initialize() error {
	if rm.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}
	if rm.config.AuthProvider == nil && rm.config.AuthProviderName != ProviderCasdoor && rm.config.Tokens == nil {
		return fmt.Errorf("token issuer is required for the local auth provider")
	}

	sqlDB, err := rm.config.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	if rm.config.RedisClient != nil {
		if _, err := rm.config.RedisClient.Ping(ctx).Result(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
	}

	rm.repo = NewPostgreSQLRepository(rm.config)
	return nil
}

func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository not initialized")
	}
	return rm.repo.Ping(ctx)
}

func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}
	return rm.repo.Close()
}
