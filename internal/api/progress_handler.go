package api

import (
	"net/http"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/service"

	"github.com/gin-gonic/gin"
)

// ProgressHandler serves body measurements, monthly check-ins and progress
// photos, all nested under a student.
type ProgressHandler struct {
	measurementService service.MeasurementService
	photoService       service.PhotoService
}

func NewProgressHandler(measurementService service.MeasurementService, photoService service.PhotoService) *ProgressHandler {
	return &ProgressHandler{
		measurementService: measurementService,
		photoService:       photoService,
	}
}

// --- DTOs ---

type MeasurementRequest struct {
	Date         string   `json:"date" binding:"required,datetime=2006-01-02"`
	WeightKg     float64  `json:"weightKg" binding:"required,gt=0,lte=500"`
	BodyFatPct   *float64 `json:"bodyFatPct" binding:"omitempty,gte=0,lte=100"`
	NeckCm       *float64 `json:"neckCm" binding:"omitempty,gte=0"`
	ChestCm      *float64 `json:"chestCm" binding:"omitempty,gte=0"`
	WaistCm      *float64 `json:"waistCm" binding:"omitempty,gte=0"`
	HipCm        *float64 `json:"hipCm" binding:"omitempty,gte=0"`
	RightArmCm   *float64 `json:"rightArmCm" binding:"omitempty,gte=0"`
	LeftArmCm    *float64 `json:"leftArmCm" binding:"omitempty,gte=0"`
	RightThighCm *float64 `json:"rightThighCm" binding:"omitempty,gte=0"`
	LeftThighCm  *float64 `json:"leftThighCm" binding:"omitempty,gte=0"`
	Notes        string   `json:"notes"`
}

func (r MeasurementRequest) toInput() service.MeasurementInput {
	return service.MeasurementInput{
		Date:         parseDate(r.Date),
		WeightKg:     r.WeightKg,
		BodyFatPct:   r.BodyFatPct,
		NeckCm:       r.NeckCm,
		ChestCm:      r.ChestCm,
		WaistCm:      r.WaistCm,
		HipCm:        r.HipCm,
		RightArmCm:   r.RightArmCm,
		LeftArmCm:    r.LeftArmCm,
		RightThighCm: r.RightThighCm,
		LeftThighCm:  r.LeftThighCm,
		Notes:        r.Notes,
	}
}

// TrackingRequest is the monthly check-in. A zero weight stores the month
// without a BMI.
type TrackingRequest struct {
	WeightKg   float64  `json:"weightKg" binding:"gte=0,lte=500"`
	BodyFatPct *float64 `json:"bodyFatPct" binding:"omitempty,gte=0,lte=100"`
	ShoulderCm *float64 `json:"shoulderCm" binding:"omitempty,gte=0"`
	ChestCm    *float64 `json:"chestCm" binding:"omitempty,gte=0"`
	ArmCm      *float64 `json:"armCm" binding:"omitempty,gte=0"`
	HipCm      *float64 `json:"hipCm" binding:"omitempty,gte=0"`
	WaistCm    *float64 `json:"waistCm" binding:"omitempty,gte=0"`
	ThighCm    *float64 `json:"thighCm" binding:"omitempty,gte=0"`
	CalfCm     *float64 `json:"calfCm" binding:"omitempty,gte=0"`
	Notes      string   `json:"notes"`
}

// monthURI addresses one month of one student.
type monthURI struct {
	ID    string `uri:"id" binding:"required,objectid"`
	Year  int    `uri:"year" binding:"required,min=1900,max=2200"`
	Month int    `uri:"month" binding:"required,min=1,max=12"`
}

// MonthlyTrackingResponse adds the BMI classification to a check-in.
type MonthlyTrackingResponse struct {
	*domain.MonthlyTracking
	Found       bool               `json:"found"`
	BMICategory domain.BMICategory `json:"bmiCategory"`
	BMILabel    string             `json:"bmiLabel"`
	BMIColor    string             `json:"bmiColor"`
}

type UploadURLRequest struct {
	FileName    string `json:"fileName" binding:"required,max=200"`
	ContentType string `json:"contentType" binding:"required"`
}

type PhotoConfirmRequest struct {
	ObjectKey   string            `json:"objectKey" binding:"required"`
	FileName    string            `json:"fileName" binding:"required,max=200"`
	ContentType string            `json:"contentType" binding:"required"`
	Size        int64             `json:"size" binding:"required,gt=0"`
	Date        string            `json:"date" binding:"omitempty,datetime=2006-01-02"`
	Angle       domain.PhotoAngle `json:"angle" binding:"required,oneof=front side back other"`
	Description string            `json:"description" binding:"max=500"`
}

type DownloadURLResponse struct {
	URL string `json:"url"`
}

// --- Measurements ---

// ListMeasurements godoc
// @Summary A student's body measurements, newest first
// @Tags Progress
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {array} domain.BodyMeasurement
// @Router /students/{id}/measurements [get]
func (h *ProgressHandler) ListMeasurements(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	studentID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	measurements, err := h.measurementService.List(c.Request.Context(), trainerID, studentID)
	if err != nil {
		respondError(c, err)
		return
	}
	if measurements == nil {
		measurements = []domain.BodyMeasurement{}
	}
	c.JSON(http.StatusOK, measurements)
}

// RecordMeasurement godoc
// @Summary Record a body measurement (one per student per day)
// @Tags Progress
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param measurement body MeasurementRequest true "Measurement"
// @Success 201 {object} domain.BodyMeasurement
// @Failure 409 {object} ErrorResponse "Already measured on that date"
// @Router /students/{id}/measurements [post]
func (h *ProgressHandler) RecordMeasurement(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	studentID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req MeasurementRequest
	if !bindJSON(c, &req) {
		return
	}

	m, err := h.measurementService.Record(c.Request.Context(), trainerID, studentID, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *ProgressHandler) UpdateMeasurement(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req MeasurementRequest
	if !bindJSON(c, &req) {
		return
	}

	m, err := h.measurementService.Update(c.Request.Context(), trainerID, id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *ProgressHandler) DeleteMeasurement(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	if err := h.measurementService.Delete(c.Request.Context(), trainerID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Monthly tracking ---

func (h *ProgressHandler) bindMonth(c *gin.Context) (monthURI, bool) {
	var uri monthURI
	if err := c.ShouldBindUri(&uri); err != nil {
		abortWithError(c, http.StatusBadRequest, service.CodeValidation, bindingMessage(err))
		return uri, false
	}
	return uri, true
}

// GetMonthly godoc
// @Summary The check-in for a month, or an empty one when none was saved
// @Tags Progress
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param year path int true "Year"
// @Param month path int true "Month 1-12"
// @Success 200 {object} MonthlyTrackingResponse
// @Router /students/{id}/monthly/{year}/{month} [get]
func (h *ProgressHandler) GetMonthly(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	uri, ok := h.bindMonth(c)
	if !ok {
		return
	}

	t, found, err := h.measurementService.GetMonthly(c.Request.Context(), trainerID, parseObjectID(uri.ID), uri.Year, uri.Month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapTrackingToResponse(t, found))
}

// SaveMonthly godoc
// @Summary Create or replace the check-in for a month
// @Tags Progress
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param year path int true "Year"
// @Param month path int true "Month 1-12"
// @Param tracking body TrackingRequest true "Check-in"
// @Success 200 {object} MonthlyTrackingResponse
// @Router /students/{id}/monthly/{year}/{month} [put]
func (h *ProgressHandler) SaveMonthly(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	uri, ok := h.bindMonth(c)
	if !ok {
		return
	}
	var req TrackingRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.measurementService.SaveMonthly(c.Request.Context(), trainerID, parseObjectID(uri.ID), uri.Year, uri.Month, service.TrackingInput{
		WeightKg:   req.WeightKg,
		BodyFatPct: req.BodyFatPct,
		ShoulderCm: req.ShoulderCm,
		ChestCm:    req.ChestCm,
		ArmCm:      req.ArmCm,
		HipCm:      req.HipCm,
		WaistCm:    req.WaistCm,
		ThighCm:    req.ThighCm,
		CalfCm:     req.CalfCm,
		Notes:      req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapTrackingToResponse(t, true))
}

func (h *ProgressHandler) DeleteMonthly(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	uri, ok := h.bindMonth(c)
	if !ok {
		return
	}

	if err := h.measurementService.DeleteMonthly(c.Request.Context(), trainerID, parseObjectID(uri.ID), uri.Year, uri.Month); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func MapTrackingToResponse(t *domain.MonthlyTracking, found bool) MonthlyTrackingResponse {
	resp := MonthlyTrackingResponse{MonthlyTracking: t, Found: found}
	if t != nil {
		resp.BMICategory = t.Category()
	} else {
		resp.BMICategory = domain.BMIUnknown
	}
	resp.BMILabel = resp.BMICategory.Label()
	resp.BMIColor = resp.BMICategory.Color()
	return resp
}

// --- Photos ---

// RequestPhotoUpload godoc
// @Summary Get a presigned URL to upload a progress photo
// @Tags Progress
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param request body UploadURLRequest true "File metadata"
// @Success 200 {object} service.UploadURLResponse
// @Router /students/{id}/photos/upload-url [post]
func (h *ProgressHandler) RequestPhotoUpload(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	studentID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req UploadURLRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.photoService.RequestUpload(c.Request.Context(), trainerID, studentID, req.FileName, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmPhoto godoc
// @Summary Record a photo after it was uploaded to the presigned URL
// @Tags Progress
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param photo body PhotoConfirmRequest true "Uploaded photo"
// @Success 201 {object} domain.ProgressPhoto
// @Router /students/{id}/photos [post]
func (h *ProgressHandler) ConfirmPhoto(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	studentID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req PhotoConfirmRequest
	if !bindJSON(c, &req) {
		return
	}

	photo, err := h.photoService.Confirm(c.Request.Context(), trainerID, studentID, service.PhotoConfirmation{
		ObjectKey:   req.ObjectKey,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Size:        req.Size,
		Date:        parseDate(req.Date),
		Angle:       req.Angle,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, photo)
}

func (h *ProgressHandler) ListPhotos(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	studentID, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	photos, err := h.photoService.List(c.Request.Context(), trainerID, studentID)
	if err != nil {
		respondError(c, err)
		return
	}
	if photos == nil {
		photos = []domain.ProgressPhoto{}
	}
	c.JSON(http.StatusOK, photos)
}

func (h *ProgressHandler) PhotoDownloadURL(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	url, err := h.photoService.DownloadURL(c.Request.Context(), trainerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DownloadURLResponse{URL: url})
}

// DeletePhoto removes the record and its stored file.
func (h *ProgressHandler) DeletePhoto(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	if err := h.photoService.Delete(c.Request.Context(), trainerID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
