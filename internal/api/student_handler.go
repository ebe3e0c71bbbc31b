package api

import (
	"net/http"
	"time"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/repository"
	"formafit/trainer-app/internal/service"

	"github.com/gin-gonic/gin"
)

type StudentHandler struct {
	studentService    service.StudentService
	enrollmentService service.EnrollmentService
	clock             service.Clock
}

func NewStudentHandler(studentService service.StudentService, enrollmentService service.EnrollmentService, clock service.Clock) *StudentHandler {
	return &StudentHandler{
		studentService:    studentService,
		enrollmentService: enrollmentService,
		clock:             clock,
	}
}

// --- DTOs ---

type StudentRequest struct {
	Name            string     `json:"name" binding:"required,max=100"`
	Email           string     `json:"email" binding:"required,email"`
	Phone           string     `json:"phone" binding:"required,br_phone"`
	BirthDate       string     `json:"birthDate" binding:"required,datetime=2006-01-02"`
	Sex             domain.Sex `json:"sex" binding:"required,oneof=M F O"`
	Address         string     `json:"address" binding:"max=300"`
	HeightM         float64    `json:"heightM" binding:"required,gt=0,lte=3"`
	InitialWeightKg float64    `json:"initialWeightKg" binding:"required,gt=0,lte=500"`
	Objective       string     `json:"objective" binding:"max=200"`
	Notes           string     `json:"notes"`
	Active          *bool      `json:"active"`
	StartDate       string     `json:"startDate" binding:"omitempty,datetime=2006-01-02"`
}

func (r StudentRequest) toInput() service.StudentInput {
	return service.StudentInput{
		Name:            r.Name,
		Email:           r.Email,
		Phone:           r.Phone,
		BirthDate:       parseDate(r.BirthDate),
		Sex:             r.Sex,
		Address:         r.Address,
		HeightM:         r.HeightM,
		InitialWeightKg: r.InitialWeightKg,
		Objective:       r.Objective,
		Notes:           r.Notes,
		Active:          r.Active,
		StartDate:       parseOptionalDate(r.StartDate),
	}
}

type StudentListQuery struct {
	Search    string `form:"search"`
	Status    string `form:"status" binding:"omitempty,oneof=active inactive"`
	Objective string `form:"objective"`
}

// EnrollRequest registers a student with a weekly schedule and a plan in
// one call.
type EnrollRequest struct {
	Student     StudentRequest   `json:"student"`
	Weekdays    []domain.Weekday `json:"weekdays" binding:"omitempty,max=7,dive,min=0,max=6"`
	Start       string           `json:"start" binding:"omitempty,hhmm"`
	PlanID      string           `json:"planId" binding:"omitempty,objectid"`
	CustomPrice *float64         `json:"customPrice" binding:"omitempty,gte=0"`
	DueDay      int              `json:"dueDay" binding:"omitempty,min=1,max=31"`
	Months      int              `json:"months" binding:"omitempty,min=1,max=24"`
}

// StudentResponse adds the derived health fields to a student.
type StudentResponse struct {
	*domain.Student
	Age         int                `json:"age"`
	BMI         *float64           `json:"bmi"`
	BMICategory domain.BMICategory `json:"bmiCategory"`
	BMILabel    string             `json:"bmiLabel"`
	BMIColor    string             `json:"bmiColor"`
}

type StudentListResponse struct {
	Students []StudentResponse        `json:"students"`
	Counts   repository.StudentCounts `json:"counts"`
}

type StudentDetailResponse struct {
	*service.StudentDetail
	Student StudentResponse `json:"student"`
}

type EnrollmentResponse struct {
	*service.EnrollmentResult
	Student StudentResponse `json:"student"`
}

// --- Handler Methods ---

// ListStudents godoc
// @Summary List the trainer's students
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name, email or phone"
// @Param status query string false "active or inactive"
// @Param objective query string false "Objective contains"
// @Success 200 {object} StudentListResponse
// @Router /students [get]
func (h *StudentHandler) ListStudents(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var q StudentListQuery
	if !bindQuery(c, &q) {
		return
	}

	filter := repository.StudentFilter{Search: q.Search, Objective: q.Objective}
	if q.Status != "" {
		active := q.Status == "active"
		filter.Active = &active
	}

	list, err := h.studentService.List(c.Request.Context(), trainerID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StudentListResponse{
		Students: h.mapStudents(list.Students),
		Counts:   list.Counts,
	})
}

// CreateStudent godoc
// @Summary Create a student
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param student body StudentRequest true "Student"
// @Success 201 {object} StudentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Email already used by another student"
// @Router /students [post]
func (h *StudentHandler) CreateStudent(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var req StudentRequest
	if !bindJSON(c, &req) {
		return
	}

	student, err := h.studentService.Create(c.Request.Context(), trainerID, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.mapStudent(student))
}

// EnrollStudent godoc
// @Summary Create a student with schedule, contract and invoices
// @Description All-or-nothing: on failure every record created by the call is removed.
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param enrollment body EnrollRequest true "Enrollment"
// @Success 201 {object} EnrollmentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Plan not found"
// @Router /students/enroll [post]
func (h *StudentHandler) EnrollStudent(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var req EnrollRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.enrollmentService.Enroll(c.Request.Context(), trainerID, service.EnrollmentInput{
		Student:     req.Student.toInput(),
		Weekdays:    req.Weekdays,
		Start:       domain.TimeOfDay(req.Start),
		PlanID:      parseOptionalObjectID(req.PlanID),
		CustomPrice: req.CustomPrice,
		DueDay:      req.DueDay,
		Months:      req.Months,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, EnrollmentResponse{
		EnrollmentResult: result,
		Student:          h.mapStudent(result.Student),
	})
}

// GetStudent godoc
// @Summary Student profile with recent history
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param year query int false "Year of the monthly tracking grid"
// @Success 200 {object} StudentDetailResponse
// @Failure 404 {object} ErrorResponse
// @Router /students/{id} [get]
func (h *StudentHandler) GetStudent(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var q struct {
		Year int `form:"year" binding:"omitempty,min=1900,max=2200"`
	}
	if !bindQuery(c, &q) {
		return
	}

	detail, err := h.studentService.Detail(c.Request.Context(), trainerID, id, q.Year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StudentDetailResponse{
		StudentDetail: detail,
		Student:       h.mapStudent(detail.Student),
	})
}

// UpdateStudent godoc
// @Summary Replace a student's editable fields
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param student body StudentRequest true "Student"
// @Success 200 {object} StudentResponse
// @Router /students/{id} [put]
func (h *StudentHandler) UpdateStudent(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req StudentRequest
	if !bindJSON(c, &req) {
		return
	}

	student, err := h.studentService.Update(c.Request.Context(), trainerID, id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.mapStudent(student))
}

// ToggleStudent flips the active flag.
func (h *StudentHandler) ToggleStudent(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	student, err := h.studentService.ToggleActive(c.Request.Context(), trainerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.mapStudent(student))
}

// DeleteStudent godoc
// @Summary Delete a student and everything recorded for them
// @Tags Students
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /students/{id} [delete]
func (h *StudentHandler) DeleteStudent(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	if err := h.studentService.Delete(c.Request.Context(), trainerID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStudentStats returns the weight and presence series for the charts.
func (h *StudentHandler) GetStudentStats(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	stats, err := h.studentService.Stats(c.Request.Context(), trainerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *StudentHandler) mapStudent(s *domain.Student) StudentResponse {
	return MapStudentToResponse(s, h.clock.Today())
}

func (h *StudentHandler) mapStudents(students []domain.Student) []StudentResponse {
	today := h.clock.Today()
	resp := make([]StudentResponse, len(students))
	for i := range students {
		resp[i] = MapStudentToResponse(&students[i], today)
	}
	return resp
}

// MapStudentToResponse derives age (as of today) and the BMI
// classification from the initial weight.
func MapStudentToResponse(s *domain.Student, today time.Time) StudentResponse {
	resp := StudentResponse{Student: s}
	if s == nil {
		return resp
	}
	resp.Age = s.AgeOn(today)
	if bmi := s.InitialBMI(); bmi != nil {
		rounded := domain.RoundCents(*bmi)
		resp.BMI = &rounded
	}
	resp.BMICategory = domain.ClassifyBMI(resp.BMI)
	resp.BMILabel = resp.BMICategory.Label()
	resp.BMIColor = resp.BMICategory.Color()
	return resp
}
