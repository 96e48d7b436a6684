package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/utils"
)

// RouterConfig carries the HTTP-level settings the handlers need.
type RouterConfig struct {
	LoginPath    string
	SecureCookie bool

	// Files mounts the upload routes; it requires a storage backend.
	Files bool

	// StaticURL and StaticDir, when both set, serve locally stored uploads.
	StaticURL string
	StaticDir string
}

type HandlerManager struct {
	services services.ServiceManager
	config   RouterConfig

	session          *SessionAuth
	authHandler      *AuthHandler
	profileHandler   *ProfileHandler
	memberHandler    *MemberHandler
	lessonHandler    *LessonHandler
	homeworkHandler  *HomeworkHandler
	feedbackHandler  *FeedbackHandler
	fileHandler      *FileHandler
	dashboardHandler *DashboardHandler
	reportHandler    *ReportHandler
}

// NewHandlerManager expects an initialized service manager.
func NewHandlerManager(serviceManager services.ServiceManager, config RouterConfig, logger utils.Logger) *HandlerManager {
	hm := &HandlerManager{
		services:         serviceManager,
		config:           config,
		session:          NewSessionAuth(serviceManager.Resolver(), config.LoginPath, logger),
		authHandler:      NewAuthHandler(serviceManager.Auth(), config.SecureCookie, logger),
		profileHandler:   NewProfileHandler(serviceManager.Profile(), logger),
		memberHandler:    NewMemberHandler(serviceManager.Member(), logger),
		lessonHandler:    NewLessonHandler(serviceManager.Lesson(), logger),
		homeworkHandler:  NewHomeworkHandler(serviceManager.Homework(), logger),
		feedbackHandler:  NewFeedbackHandler(serviceManager.Feedback(), logger),
		dashboardHandler: NewDashboardHandler(serviceManager.Dashboard(), logger),
		reportHandler:    NewReportHandler(serviceManager.Report(), logger),
	}
	if config.Files {
		hm.fileHandler = NewFileHandler(serviceManager.File(), logger)
	}
	return hm
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	signedIn := hm.session.RequireProfile()
	admin := hm.session.RequireRole(models.RoleAdmin)
	tutor := hm.session.RequireRole(models.RoleTutor)
	student := hm.session.RequireRole(models.RoleStudent)
	parent := hm.session.RequireRole(models.RoleParent)

	v1 := router.Group("/api/v1")
	v1.Use(hm.session.Authenticate())
	{
		// Public auth routes; Me reports the loading or signed-out state itself
		auth := v1.Group("/auth")
		{
			auth.POST("/signup", hm.authHandler.SignUp)
			auth.POST("/signin", hm.authHandler.SignIn)
			auth.POST("/refresh", hm.authHandler.Refresh)
			auth.POST("/signout", hm.authHandler.SignOut)
			auth.GET("/confirm", hm.authHandler.ConfirmEmail)
			auth.POST("/confirm", hm.authHandler.ConfirmEmail)
			auth.GET("/me", hm.authHandler.Me)
		}

		profiles := v1.Group("/profiles")
		profiles.Use(signedIn)
		{
			profiles.GET("/me", hm.profileHandler.GetMe)
			profiles.PUT("/me", hm.profileHandler.UpdateMe)
			profiles.GET("/:user_id", hm.profileHandler.Get)

			profiles.GET("", admin, hm.profileHandler.List)
			profiles.PUT("/:user_id/role", admin, hm.profileHandler.ChangeRole)
			profiles.DELETE("/:user_id", admin, hm.profileHandler.Delete)
		}

		// Visibility of individual students is narrowed by the service
		students := v1.Group("/students")
		students.Use(signedIn)
		{
			students.GET("", hm.memberHandler.ListStudents)
			students.GET("/me", student, hm.memberHandler.GetMyStudent)
			students.GET("/:id", hm.memberHandler.GetStudent)
			students.PUT("/:id", admin, hm.memberHandler.UpdateStudent)
			students.POST("/:id/hours", admin, hm.memberHandler.PurchaseHours)
		}

		v1.GET("/parents/me/children", signedIn, parent, hm.memberHandler.MyChildren)

		tutors := v1.Group("/tutors")
		tutors.Use(signedIn)
		{
			tutors.GET("", hm.memberHandler.ListTutors)
			tutors.GET("/me", tutor, hm.memberHandler.GetMyTutor)
			tutors.PUT("/me", tutor, hm.memberHandler.UpdateMyTutor)
			tutors.GET("/:id", hm.memberHandler.GetTutor)
		}

		lessons := v1.Group("/lessons")
		lessons.Use(signedIn)
		{
			lessons.POST("", hm.lessonHandler.Create)
			lessons.GET("", hm.lessonHandler.List)
			lessons.GET("/:id", hm.lessonHandler.Get)
			lessons.PUT("/:id", hm.lessonHandler.Update)
			lessons.DELETE("/:id", hm.lessonHandler.Delete)
			lessons.POST("/:id/complete", hm.lessonHandler.Complete)
			lessons.POST("/:id/cancel", hm.lessonHandler.Cancel)
		}

		homework := v1.Group("/homework")
		homework.Use(signedIn)
		{
			homework.POST("", hm.homeworkHandler.Assign)
			homework.GET("", hm.homeworkHandler.List)
			homework.GET("/pending-grading", hm.homeworkHandler.PendingGrading)
			homework.GET("/:id", hm.homeworkHandler.Get)
			homework.PUT("/:id", hm.homeworkHandler.Update)
			homework.DELETE("/:id", hm.homeworkHandler.Delete)
			homework.POST("/:id/submissions", student, hm.homeworkHandler.Submit)
		}
		v1.POST("/submissions/:id/grade", signedIn, hm.homeworkHandler.Grade)

		feedback := v1.Group("/feedback")
		feedback.Use(signedIn)
		{
			feedback.POST("", hm.feedbackHandler.Leave)
			feedback.GET("", hm.feedbackHandler.List)
		}

		performance := v1.Group("/performance")
		performance.Use(signedIn)
		{
			performance.POST("", hm.feedbackHandler.RecordPerformance)
			performance.GET("", hm.feedbackHandler.ListPerformance)
		}

		if hm.fileHandler != nil {
			files := v1.Group("/files")
			files.Use(signedIn)
			{
				files.POST("", hm.fileHandler.Upload)
				files.GET("", hm.fileHandler.List)
				files.GET("/:id", hm.fileHandler.Get)
				files.DELETE("/:id", hm.fileHandler.Delete)
			}
		}

		// One dashboard per role; a mismatched role is sent back to sign-in
		dashboard := v1.Group("/dashboard")
		dashboard.Use(signedIn)
		{
			dashboard.GET("/admin", admin, hm.dashboardHandler.Admin)
			dashboard.GET("/tutor", tutor, hm.dashboardHandler.Tutor)
			dashboard.GET("/student", student, hm.dashboardHandler.Student)
			dashboard.GET("/parent", parent, hm.dashboardHandler.Parent)
		}

		reports := v1.Group("/reports")
		reports.Use(signedIn, admin)
		{
			reports.GET("/student-hours", hm.reportHandler.StudentHours)
			reports.GET("/lessons.xlsx", hm.reportHandler.Workbook)
		}
	}

	if hm.config.StaticURL != "" && hm.config.StaticDir != "" {
		router.Static(hm.config.StaticURL, hm.config.StaticDir)
	}

	router.GET("/health", hm.health)
}

func (hm *HandlerManager) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := hm.services.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "tutoring-service",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "tutoring-service",
	})
}
