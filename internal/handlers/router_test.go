package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matthewhartstonge/argon2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/auth"
	"github.com/yolymatics/tutoring-service/internal/cache"
	"github.com/yolymatics/tutoring-service/internal/events"
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/repositories/postgres"
	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/storage"
	"github.com/yolymatics/tutoring-service/internal/testutil"
	"github.com/yolymatics/tutoring-service/internal/utils"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	repo   repositories.Repository
	cache  *cache.CacheManager
	sm     services.ServiceManager
}

func newTestServer(t *testing.T) *testServer {
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
		Tokens:       auth.NewTokenIssuer("handler-test-secret", "tutoring-test", 15*time.Minute, 24*time.Hour, time.Hour),
		Hasher:       auth.NewPasswordHasher(hashConfig),
	})

	uploadDir := t.TempDir()
	store, err := storage.NewLocalStore(uploadDir, "/files", logger)
	require.NoError(t, err)

	sm := services.NewServiceManager(services.Dependencies{
		Repo:   repo,
		Cache:  cm,
		Bus:    events.NewBus(logger),
		Store:  store,
		Logger: logger,
	}, services.ServiceManagerConfig{
		Auth: services.AuthServiceConfig{LoginPath: "/login", PublicURL: "http://tutoring.test"},
	})
	require.NoError(t, sm.Initialize(context.Background()))
	t.Cleanup(func() { _ = sm.Shutdown(context.Background()) })

	router := gin.New()
	appLogger := utils.NewSlogLogger(logger)
	SetupMiddleware(router, appLogger, []string{"http://app.test"})
	NewHandlerManager(sm, RouterConfig{
		LoginPath: "/login",
		Files:     true,
		StaticURL: "/files",
		StaticDir: uploadDir,
	}, appLogger).SetupRoutes(router)

	return &testServer{t: t, router: router, repo: repo, cache: cm, sm: sm}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// signUp registers a user over HTTP and returns their id and access token.
func (s *testServer) signUp(email, name string) (string, string) {
	s.t.Helper()

	w := s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":     email,
		"password":  "s3cret-passw0rd",
		"full_name": name,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var resp services.AuthResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(s.t, resp.Session)
	return resp.User.ID, resp.Session.AccessToken
}

// promote gives userID role the way an admin change would, bypassing the API.
func (s *testServer) promote(userID string, role models.Role) {
	s.t.Helper()
	ctx := context.Background()

	// the profile is created on first authenticated request
	_, err := s.repo.Profile().GetByUserID(ctx, nil, userID)
	require.NoError(s.t, err)

	require.NoError(s.t, s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Profile().UpdateRole(ctx, tx, userID, role); err != nil {
			return err
		}
		if role == models.RoleTutor {
			_, err := s.repo.Tutor().EnsureForUser(ctx, tx, userID)
			return err
		}
		return nil
	}))
	cache.InvalidateProfileCache(ctx, s.cache, userID)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/lessons", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://app.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_SignedOut(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/lessons", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect_to":"/login"`)

	w = s.do(http.MethodGet, "/api/v1/auth/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/student", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2Fapi%2Fv1%2Fdashboard%2Fstudent", rec.Header().Get("Location"))
}

func TestRouter_NewUserLandsOnStudentDashboard(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signUp("sam@example.com", "Sam Student")

	w := s.do(http.MethodGet, "/api/v1/profiles/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var profile models.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, models.RoleStudent, profile.Role)
	assert.Equal(t, "Sam Student", profile.FullName)

	w = s.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect_to":"/student"`)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/dashboard/student", token, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/students/me", token, nil).Code)

	w = s.do(http.MethodGet, "/api/v1/dashboard/admin", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"dashboard":"/student"`)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/reports/student-hours", token, nil).Code)
}

func TestRouter_SessionCookie(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":     "cookie@example.com",
		"password":  "s3cret-passw0rd",
		"full_name": "Cookie Monster",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == accessTokenCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profiles/me", nil)
	req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: session.Value})
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/signout", session.Value, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/profiles/me", session.Value, nil).Code)
}

func TestRouter_LessonLifecycle(t *testing.T) {
	s := newTestServer(t)

	adminID, adminToken := s.signUp("ada@example.com", "Ada Admin")
	s.do(http.MethodGet, "/api/v1/profiles/me", adminToken, nil)
	s.promote(adminID, models.RoleAdmin)

	tutorID, tutorToken := s.signUp("tom@example.com", "Tom Tutor")
	s.do(http.MethodGet, "/api/v1/profiles/me", tutorToken, nil)
	s.promote(tutorID, models.RoleTutor)

	_, studentToken := s.signUp("sue@example.com", "Sue Student")
	w := s.do(http.MethodGet, "/api/v1/students/me", studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var student models.Student
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &student))

	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/students/%s/hours", student.ID), adminToken, map[string]interface{}{"hours": 10})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/lessons", studentToken, map[string]interface{}{
		"student_id": student.ID, "subject": "Math",
		"scheduled_date": time.Now().Add(24 * time.Hour), "duration_minutes": 60,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/lessons", tutorToken, map[string]interface{}{
		"student_id": student.ID, "subject": "Math",
		"scheduled_date": time.Now().Add(24 * time.Hour), "duration_minutes": 90,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var lesson models.Lesson
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lesson))
	assert.Equal(t, models.LessonScheduled, lesson.Status)

	w = s.do(http.MethodGet, "/api/v1/lessons?status=bogus", tutorToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodGet, "/api/v1/lessons?from=yesterday", tutorToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/lessons?status=scheduled", studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.EqualValues(t, 1, page.Total)

	w = s.do(http.MethodPost, "/api/v1/lessons/"+lesson.ID+"/complete", tutorToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/lessons/"+lesson.ID+"/cancel", tutorToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "status_transition")

	w = s.do(http.MethodGet, "/api/v1/students/"+student.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &student))
	assert.InDelta(t, 1.5, student.HoursUsed, 0.001)

	w = s.do(http.MethodPost, "/api/v1/feedback", studentToken, map[string]interface{}{
		"lesson_id": lesson.ID, "rating": 5, "comments": "Clear explanations",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/v1/feedback", studentToken, map[string]interface{}{
		"lesson_id": lesson.ID, "rating": 4,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	today := time.Now().UTC()
	report := fmt.Sprintf("/api/v1/reports/lessons.xlsx?from=%s&to=%s",
		today.AddDate(0, 0, -7).Format("2006-01-02"), today.AddDate(0, 0, 7).Format("2006-01-02"))
	w = s.do(http.MethodGet, report, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	w = s.do(http.MethodGet, "/api/v1/reports/lessons.xlsx?from=2000-01-01", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "one year")

	w = s.do(http.MethodGet, "/api/v1/lessons/"+lesson.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_FileUpload(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signUp("pat@example.com", "Pat Student")

	png := []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "dot.png")
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var file models.File
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &file))
	assert.Equal(t, "image/png", file.MimeType)
	assert.Equal(t, "dot.png", file.OriginalFilename)

	w = s.do(http.MethodGet, file.FileURL, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/v1/files", token, map[string]string{"not": "multipart"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", services.ValidationErrors{{Field: "rating", Message: "must be between 1 and 5"}}, http.StatusBadRequest},
		{"business rule", services.NewBusinessRuleError("lesson_final", "done", nil), http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("wrapped: %w", services.ErrLessonNotFound), http.StatusNotFound},
		{"bad credentials", services.ErrInvalidCredentials, http.StatusUnauthorized},
		{"forbidden", services.ErrForbidden, http.StatusForbidden},
		{"unconfirmed", services.ErrEmailNotConfirmed, http.StatusForbidden},
		{"duplicate", services.ErrEmailTaken, http.StatusConflict},
		{"too large", services.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"denied type", services.ErrFileTypeDenied, http.StatusUnsupportedMediaType},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	h := NewBaseHandler(utils.NewSlogLogger(testutil.Logger()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			h.handleServiceError(c, tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
