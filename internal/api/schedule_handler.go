package api

import (
	"net/http"
	"strings"
	"time"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/repository"
	"formafit/trainer-app/internal/service"

	"github.com/gin-gonic/gin"
)

type ScheduleHandler struct {
	scheduleService   service.ScheduleService
	attendanceService service.AttendanceService
	clock             service.Clock
	defaultWeeks      int
}

func NewScheduleHandler(scheduleService service.ScheduleService, attendanceService service.AttendanceService, clock service.Clock, defaultWeeks int) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleService:   scheduleService,
		attendanceService: attendanceService,
		clock:             clock,
		defaultWeeks:      defaultWeeks,
	}
}

// --- DTOs ---

type SlotRequest struct {
	Weekday *domain.Weekday `json:"weekday" binding:"required,min=0,max=6"`
	Start   string          `json:"start" binding:"required,hhmm"`
	End     string          `json:"end" binding:"required,hhmm"`
	Active  *bool           `json:"active"`
}

type GenerateSessionsRequest struct {
	Weeks int `json:"weeks" binding:"omitempty,min=1,max=12"`
}

type GenerateSessionsResponse struct {
	Created int `json:"created"`
}

type SessionRequest struct {
	StudentID    string               `json:"studentId" binding:"required,objectid"`
	Date         string               `json:"date" binding:"required,datetime=2006-01-02"`
	Start        string               `json:"start" binding:"required,hhmm"`
	End          string               `json:"end" binding:"omitempty,hhmm"`
	Status       domain.SessionStatus `json:"status" binding:"omitempty,oneof=scheduled confirmed completed cancelled"`
	TrainingType string               `json:"trainingType" binding:"max=100"`
	Notes        string               `json:"notes"`
}

type SessionStatusRequest struct {
	Status domain.SessionStatus `json:"status" binding:"required,oneof=scheduled confirmed completed cancelled"`
}

// SessionListQuery filters sessions. Status takes a comma separated list.
type SessionListQuery struct {
	StudentID string `form:"studentId" binding:"omitempty,objectid"`
	Search    string `form:"search"`
	Status    string `form:"status"`
	From      string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To        string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

type CalendarQuery struct {
	Year  int `form:"year" binding:"omitempty,min=1900,max=2200"`
	Month int `form:"month" binding:"omitempty,min=1,max=12"`
}

type CalendarResponse struct {
	Year  int                   `json:"year"`
	Month int                   `json:"month"`
	Days  []service.CalendarDay `json:"days"`
}

type AttendanceRequest struct {
	StudentID string                  `json:"studentId" binding:"required,objectid"`
	Date      string                  `json:"date" binding:"required,datetime=2006-01-02"`
	Start     string                  `json:"start" binding:"required,hhmm"`
	End       string                  `json:"end" binding:"required,hhmm"`
	Status    domain.AttendanceStatus `json:"status" binding:"omitempty,oneof=present absent excused"`
	Notes     string                  `json:"notes"`
}

type AttendanceListQuery struct {
	StudentID string                  `form:"studentId" binding:"omitempty,objectid"`
	Search    string                  `form:"search"`
	Status    domain.AttendanceStatus `form:"status" binding:"omitempty,oneof=present absent excused"`
	From      string                  `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To        string                  `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

func (r SlotRequest) toInput() service.SlotInput {
	return service.SlotInput{
		Weekday: *r.Weekday,
		Start:   domain.TimeOfDay(r.Start),
		End:     domain.TimeOfDay(r.End),
		Active:  r.Active,
	}
}

func (r SessionRequest) toInput() service.SessionInput {
	return service.SessionInput{
		StudentID:    parseObjectID(r.StudentID),
		Date:         parseDate(r.Date),
		Start:        domain.TimeOfDay(r.Start),
		End:          domain.TimeOfDay(r.End),
		Status:       r.Status,
		TrainingType: r.TrainingType,
		Notes:        r.Notes,
	}
}

func (r AttendanceRequest) toInput() service.AttendanceInput {
	return service.AttendanceInput{
		StudentID: parseObjectID(r.StudentID),
		Date:      parseDate(r.Date),
		Start:     domain.TimeOfDay(r.Start),
		End:       domain.TimeOfDay(r.End),
		Status:    r.Status,
		Notes:     r.Notes,
	}
}

// --- Slots ---

func (h *ScheduleHandler) ListSlots(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	studentID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	slots, err := h.scheduleService.ListSlots(c.Request.Context(), trainerID, studentID)
	if err != nil {
		respondError(c, err)
		return
	}
	if slots == nil {
		slots = []domain.ScheduleSlot{}
	}
	c.JSON(http.StatusOK, slots)
}

// CreateSlot godoc
// @Summary Add a weekly slot to a student's schedule
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param slot body SlotRequest true "Slot"
// @Success 201 {object} domain.ScheduleSlot
// @Failure 409 {object} ErrorResponse "Slot already exists"
// @Router /students/{id}/slots [post]
func (h *ScheduleHandler) CreateSlot(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	studentID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req SlotRequest
	if !bindJSON(c, &req) {
		return
	}

	slot, err := h.scheduleService.CreateSlot(c.Request.Context(), trainerID, studentID, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

func (h *ScheduleHandler) UpdateSlot(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req SlotRequest
	if !bindJSON(c, &req) {
		return
	}

	slot, err := h.scheduleService.UpdateSlot(c.Request.Context(), trainerID, id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

func (h *ScheduleHandler) DeleteSlot(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	if err := h.scheduleService.DeleteSlot(c.Request.Context(), trainerID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GenerateSessions godoc
// @Summary Create sessions from every active slot, starting next Monday
// @Description Sessions that already exist for the same student, date and start are skipped.
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body GenerateSessionsRequest false "Number of weeks (default from config)"
// @Success 200 {object} GenerateSessionsResponse
// @Router /schedule/generate [post]
func (h *ScheduleHandler) GenerateSessions(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var req GenerateSessionsRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	if req.Weeks == 0 {
		req.Weeks = h.defaultWeeks
	}

	created, err := h.scheduleService.GenerateFromSlots(c.Request.Context(), trainerID, req.Weeks)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenerateSessionsResponse{Created: created})
}

// --- Sessions ---

// ListSessions godoc
// @Summary List scheduled sessions
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Student ID"
// @Param search query string false "Student name"
// @Param status query string false "Comma separated statuses"
// @Param from query string false "YYYY-MM-DD, inclusive"
// @Param to query string false "YYYY-MM-DD, inclusive"
// @Success 200 {array} domain.ScheduledSession
// @Router /sessions [get]
func (h *ScheduleHandler) ListSessions(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var q SessionListQuery
	if !bindQuery(c, &q) {
		return
	}

	filter := repository.SessionFilter{
		StudentID: parseOptionalObjectID(q.StudentID),
		Search:    q.Search,
		From:      parseOptionalDate(q.From),
		To:        parseOptionalDate(q.To),
	}
	for _, s := range strings.Split(q.Status, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		status := domain.SessionStatus(s)
		if !status.Valid() {
			abortWithError(c, http.StatusBadRequest, service.CodeValidation, "status: '"+s+"' is not a valid session status")
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	sessions, err := h.scheduleService.ListSessions(c.Request.Context(), trainerID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if sessions == nil {
		sessions = []domain.ScheduledSession{}
	}
	c.JSON(http.StatusOK, sessions)
}

// CreateSession godoc
// @Summary Schedule a single session
// @Description End defaults to start plus the configured session length.
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param session body SessionRequest true "Session"
// @Success 201 {object} domain.ScheduledSession
// @Failure 400 {object} ErrorResponse "End not after start"
// @Router /sessions [post]
func (h *ScheduleHandler) CreateSession(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var req SessionRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.scheduleService.CreateSession(c.Request.Context(), trainerID, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *ScheduleHandler) GetSession(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	session, err := h.scheduleService.GetSession(c.Request.Context(), trainerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *ScheduleHandler) UpdateSession(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req SessionRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.scheduleService.UpdateSession(c.Request.Context(), trainerID, id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// SetSessionStatus is the quick status change from the agenda.
func (h *ScheduleHandler) SetSessionStatus(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req SessionStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.scheduleService.SetSessionStatus(c.Request.Context(), trainerID, id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *ScheduleHandler) DeleteSession(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	if err := h.scheduleService.DeleteSession(c.Request.Context(), trainerID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Calendar godoc
// @Summary Sessions of a month grouped by day
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param year query int false "Defaults to the current year"
// @Param month query int false "Defaults to the current month"
// @Success 200 {object} CalendarResponse
// @Router /schedule/calendar [get]
func (h *ScheduleHandler) Calendar(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var q CalendarQuery
	if !bindQuery(c, &q) {
		return
	}
	today := h.clock.Today()
	if q.Year == 0 {
		q.Year = today.Year()
	}
	if q.Month == 0 {
		q.Month = int(today.Month())
	}

	days, err := h.scheduleService.Calendar(c.Request.Context(), trainerID, q.Year, time.Month(q.Month))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, CalendarResponse{Year: q.Year, Month: q.Month, Days: days})
}

// Agenda godoc
// @Summary Scheduling dashboard: today, next days, week count, attendance ranking
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Agenda
// @Router /schedule/agenda [get]
func (h *ScheduleHandler) Agenda(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}

	agenda, err := h.scheduleService.Agenda(c.Request.Context(), trainerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agenda)
}

// --- Attendance ---

func (h *ScheduleHandler) ListAttendance(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var q AttendanceListQuery
	if !bindQuery(c, &q) {
		return
	}

	records, err := h.attendanceService.List(c.Request.Context(), trainerID, repository.AttendanceFilter{
		StudentID: parseOptionalObjectID(q.StudentID),
		Search:    q.Search,
		Status:    q.Status,
		From:      parseOptionalDate(q.From),
		To:        parseOptionalDate(q.To),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []domain.AttendanceRecord{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *ScheduleHandler) CreateAttendance(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var req AttendanceRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := h.attendanceService.Create(c.Request.Context(), trainerID, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *ScheduleHandler) GetAttendance(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	record, err := h.attendanceService.Get(c.Request.Context(), trainerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *ScheduleHandler) UpdateAttendance(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req AttendanceRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := h.attendanceService.Update(c.Request.Context(), trainerID, id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *ScheduleHandler) DeleteAttendance(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	if err := h.attendanceService.Delete(c.Request.Context(), trainerID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// QuickAttendance godoc
// @Summary Register presence for a session and mark it completed
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 201 {object} domain.AttendanceRecord
// @Failure 404 {object} ErrorResponse "Session not found"
// @Failure 409 {object} ErrorResponse "Attendance already registered"
// @Router /sessions/{id}/attendance [post]
func (h *ScheduleHandler) QuickAttendance(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	sessionID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	record, err := h.attendanceService.QuickRegister(c.Request.Context(), trainerID, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}
