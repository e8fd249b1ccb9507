package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lectureflow/internal/attendance"
	"lectureflow/internal/auth"
	"lectureflow/internal/httpmiddleware"
	"lectureflow/internal/metrics"
	"lectureflow/internal/queue"
	"lectureflow/internal/reminder"
)

type pinger interface {
	Healthy(ctx context.Context) bool
}

// server holds the handles the HTTP routes need.
type server struct {
	svc           *attendance.Service
	queue         queue.Queue
	sweeper       *reminder.Sweeper // nil without a bot token
	signer        *auth.Signer
	limiter       *httpmiddleware.TokenBucket
	checks        map[string]pinger
	adminKey      string
	webhookSecret string
	loc           *time.Location
	now           func() time.Time
}

func (s *server) today() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

func (s *server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)
	r.POST("/telegram/:secret", s.webhook)

	r.POST("/v1/tokens", s.limiter.Middleware(), s.issueToken)
	r.POST("/v1/tokens/refresh", s.limiter.Middleware(), s.refreshToken)

	v1 := r.Group("/v1", s.limiter.Middleware(), auth.OperatorAuth(s.signer))
	v1.GET("/lessons", s.lessons)
	v1.GET("/subjects", s.subjects)
	v1.GET("/users/:id/profile", s.profile)
	v1.GET("/users/:id/allowance", s.allowance)
	v1.GET("/users/:id/days/:date", s.day)
	v1.POST("/reminders/:job", s.runReminder)
	return r
}

func (s *server) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, p := range s.checks {
		ok := p.Healthy(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// webhook accepts Telegram updates and hands them to the worker queue.
func (s *server) webhook(c *gin.Context) {
	if s.webhookSecret == "" || c.Param("secret") != s.webhookSecret {
		metrics.WebhookUpdates.WithLabelValues("rejected").Inc()
		c.Status(http.StatusNotFound)
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body"})
		return
	}
	var u tgbotapi.Update
	if err := json.Unmarshal(raw, &u); err != nil {
		metrics.WebhookUpdates.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}
	if err := s.queue.Publish(c.Request.Context(), queue.NewMessage(queue.TypeUpdate, raw)); err != nil {
		log.Printf("webhook: publish update %d: %v", u.UpdateID, err)
		metrics.WebhookUpdates.WithLabelValues("error").Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		return
	}
	metrics.WebhookUpdates.WithLabelValues("queued").Inc()
	c.Status(http.StatusOK)
}

func (s *server) issueToken(c *gin.Context) {
	var req struct {
		AdminKey string `json:"admin_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := auth.CheckAdminKey(s.adminKey, req.AdminKey); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
		return
	}
	tokens, err := s.signer.Issue(auth.RoleOperator)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, tokenBody(tokens))
}

func (s *server) refreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tokens, err := s.signer.Refresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusCreated, tokenBody(tokens))
}

func tokenBody(tokens auth.TokenPair) gin.H {
	return gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	}
}

type lessonDTO struct {
	ID       int64  `json:"id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Category *int64 `json:"category"`
	Subject  string `json:"subject"`
	Type     string `json:"type"`
}

func toLessonDTO(l attendance.Lesson) lessonDTO {
	dto := lessonDTO{ID: l.ID, Date: l.DateString(), Time: l.Time, Subject: l.Subject, Type: string(l.Type)}
	if l.Category.Valid {
		id := l.Category.ID
		dto.Category = &id
	}
	return dto
}

// dateParam reads a YYYY-MM-DD value, defaulting to today when empty.
func (s *server) dateParam(c *gin.Context, v string) (time.Time, bool) {
	if v == "" {
		return s.today(), true
	}
	d, err := attendance.ParseDate(v, s.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return d, true
}

func userParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

func categoryParam(c *gin.Context) (attendance.Category, bool) {
	cat, err := attendance.ParseCategory(c.Query("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return attendance.Category{}, false
	}
	return cat, true
}

func (s *server) lessons(c *gin.Context) {
	date, ok := s.dateParam(c, c.Query("date"))
	if !ok {
		return
	}
	lessons, err := s.svc.Schedule(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]lessonDTO, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, toLessonDTO(l))
	}
	c.JSON(http.StatusOK, gin.H{"date": date.Format(attendance.DateLayout), "lessons": out})
}

func (s *server) subjects(c *gin.Context) {
	cat, ok := categoryParam(c)
	if !ok {
		return
	}
	subjects, err := s.svc.Subjects(c.Request.Context(), cat)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if subjects == nil {
		subjects = []attendance.Subject{}
	}
	c.JSON(http.StatusOK, gin.H{"category": cat.String(), "subjects": subjects})
}

func (s *server) profile(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}
	asOf, ok := s.dateParam(c, c.Query("as_of"))
	if !ok {
		return
	}
	rows, err := s.svc.Profile(c.Request.Context(), userID, asOf)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		out = append(out, gin.H{
			"subject":  r.Subject,
			"occurred": r.Occurred,
			"attended": r.Attended,
			"percent":  r.Percent().StringFixed(1),
			"low":      r.Low(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "as_of": asOf.Format(attendance.DateLayout), "subjects": out})
}

func (s *server) allowance(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}
	cat, ok := categoryParam(c)
	if !ok {
		return
	}
	t, err := attendance.ParseSubjectType(c.Query("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := c.Query("subject")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject is required"})
		return
	}
	a, err := s.svc.Allowance(c.Request.Context(), userID, cat, attendance.SubjectKey{Name: name, Type: t})
	if errors.Is(err, attendance.ErrSubjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":    userID,
		"category":   a.Category.String(),
		"subject":    a.Subject,
		"limit":      a.Limit.String(),
		"total":      a.Total,
		"missed":     a.Missed,
		"max_absent": a.MaxAbsent,
		"remaining":  a.Remaining,
		"exceeded":   a.Exceeded(),
	})
}

func (s *server) day(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}
	date, ok := s.dateParam(c, c.Param("date"))
	if !ok {
		return
	}
	sheet, err := s.svc.DaySheet(c.Request.Context(), userID, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]gin.H, 0, len(sheet))
	for _, ls := range sheet {
		out = append(out, gin.H{"lesson": toLessonDTO(ls.Lesson), "mark": ls.Mark.String()})
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "date": date.Format(attendance.DateLayout), "lessons": out})
}

// runReminder triggers a reminder job immediately, bypassing the daily lock.
func (s *server) runReminder(c *gin.Context) {
	if s.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bot not configured"})
		return
	}
	rep, err := s.sweeper.Run(c.Request.Context(), c.Param("job"))
	if errors.Is(err, reminder.ErrUnknownJob) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": rep})
		return
	}
	c.JSON(http.StatusOK, rep)
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
