package models

import "time"

// ===== DASHBOARD DTOs =====

type AdminDashboard struct {
	TotalStudents     int64   `json:"total_students"`
	TotalTutors       int64   `json:"total_tutors"`
	TotalParents      int64   `json:"total_parents"`
	LessonsThisWeek   int64   `json:"lessons_this_week"`
	CompletedLessons  int64   `json:"completed_lessons"`
	CancelledLessons  int64   `json:"cancelled_lessons"`
	AverageRating     float64 `json:"average_rating"`
	PendingSubmission int64   `json:"pending_submissions"`
}

type TutorDashboard struct {
	UpcomingLessons    []*Lesson     `json:"upcoming_lessons"`
	PendingGrading     []*Submission `json:"pending_grading"`
	StudentCount       int64         `json:"student_count"`
	CompletedThisMonth int64         `json:"completed_this_month"`
	AverageRating      float64       `json:"average_rating"`
}

type StudentDashboard struct {
	UpcomingLessons []*Lesson      `json:"upcoming_lessons"`
	OpenHomework    []*Homework    `json:"open_homework"`
	RecentScores    []*Performance `json:"recent_scores"`
	HoursPurchased  float64        `json:"hours_purchased"`
	HoursUsed       float64        `json:"hours_used"`
	HoursRemaining  float64        `json:"hours_remaining"`
}

type ChildSummary struct {
	Student         *Student       `json:"student"`
	UpcomingLessons []*Lesson      `json:"upcoming_lessons"`
	RecentScores    []*Performance `json:"recent_scores"`
	HoursRemaining  float64        `json:"hours_remaining"`
}

type ParentDashboard struct {
	Children []ChildSummary `json:"children"`
}

type SuccessResponse struct {
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
