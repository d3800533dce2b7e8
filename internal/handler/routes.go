package handler

import "github.com/gin-gonic/gin"

// Handlers bundles the grading API handlers.
type Handlers struct {
	Settings    *SettingsHandler
	Grades      *GradeHandler
	Reports     *ReportHandler
	Classes     *ClassHandler
	Submissions *SubmissionHandler
}

// RegisterRoutes mounts the grading API on r.
func RegisterRoutes(r gin.IRouter, h Handlers) {
	groups := r.Group("/class-groups/:id")
	groups.GET("/assessment-system", h.Settings.AssessmentSystem)
	groups.GET("/term-structure", h.Settings.TermStructure)
	groups.PUT("/term-settings", h.Settings.SaveTermSettings)

	grades := r.Group("/grades")
	grades.GET("/period", h.Grades.PeriodGrade)
	grades.POST("/term", h.Grades.TermGrade)

	books := r.Group("/gradebooks/:id")
	books.POST("/cumulative", h.Grades.Cumulative)
	books.POST("/cumulative/batch", h.Grades.CumulativeBatch)
	books.GET("/students/:studentId/annual", h.Grades.Annual)
	books.GET("/students/:studentId/report-card", h.Reports.ReportCard)

	classes := r.Group("/classes")
	classes.POST("", h.Classes.Create)
	classes.POST("/:id/gradebook", h.Classes.InitializeGradeBook)

	r.POST("/submissions/:id/grade", h.Submissions.Grade)
}
