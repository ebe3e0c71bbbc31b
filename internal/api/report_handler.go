package api

import (
	"net/http"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// --- DTOs ---

type ReportTypeRequest struct {
	Name                string `json:"name" binding:"required,max=100"`
	Description         string `json:"description" binding:"max=500"`
	IncludeCharts       bool   `json:"includeCharts"`
	IncludePhotos       bool   `json:"includePhotos"`
	IncludeMeasurements bool   `json:"includeMeasurements"`
	IncludeAttendance   bool   `json:"includeAttendance"`
	Active              *bool  `json:"active"`
}

type ReportRequest struct {
	StudentID   string `json:"studentId" binding:"required,objectid"`
	TypeID      string `json:"typeId" binding:"required,objectid"`
	Title       string `json:"title" binding:"max=200"`
	PeriodStart string `json:"periodStart" binding:"required,datetime=2006-01-02"`
	PeriodEnd   string `json:"periodEnd" binding:"required,datetime=2006-01-02"`
}

// BatchReportRequest generates one report type and period for several students.
type BatchReportRequest struct {
	StudentIDs  []string `json:"studentIds" binding:"required,min=1,max=50,dive,objectid"`
	TypeID      string   `json:"typeId" binding:"required,objectid"`
	PeriodStart string   `json:"periodStart" binding:"required,datetime=2006-01-02"`
	PeriodEnd   string   `json:"periodEnd" binding:"required,datetime=2006-01-02"`
}

type BatchReportResponse struct {
	Results []service.BatchResult `json:"results"`
	Ready   int                   `json:"ready"`
	Failed  int                   `json:"failed"`
}

// EmailReportRequest overrides the recipient; empty sends to the student.
type EmailReportRequest struct {
	To string `json:"to" binding:"omitempty,email"`
}

// ReportStatusResponse is the polling view of a report.
type ReportStatusResponse struct {
	ID     string              `json:"id"`
	Status domain.ReportStatus `json:"status"`
	Error  string              `json:"error,omitempty"`
	Ready  bool                `json:"ready"`
}

func (r ReportTypeRequest) toInput() service.ReportTypeInput {
	return service.ReportTypeInput{
		Name:                r.Name,
		Description:         r.Description,
		IncludeCharts:       r.IncludeCharts,
		IncludePhotos:       r.IncludePhotos,
		IncludeMeasurements: r.IncludeMeasurements,
		IncludeAttendance:   r.IncludeAttendance,
		Active:              r.Active,
	}
}

// --- Report types ---

// ListReportTypes shows trainers the active types; admins see all of them.
func (h *ReportHandler) ListReportTypes(c *gin.Context) {
	role, _ := getUserRoleFromContext(c)
	activeOnly := role != domain.RoleAdmin || c.Query("active") == "true"

	types, err := h.reportService.ListTypes(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	if types == nil {
		types = []domain.ReportType{}
	}
	c.JSON(http.StatusOK, types)
}

func (h *ReportHandler) GetReportType(c *gin.Context) {
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	rt, err := h.reportService.GetType(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rt)
}

// CreateReportType godoc
// @Summary Create a report type (admin)
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param type body ReportTypeRequest true "Report type"
// @Success 201 {object} domain.ReportType
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Name already used"
// @Router /report-types [post]
func (h *ReportHandler) CreateReportType(c *gin.Context) {
	var req ReportTypeRequest
	if !bindJSON(c, &req) {
		return
	}

	rt, err := h.reportService.CreateType(c.Request.Context(), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rt)
}

func (h *ReportHandler) UpdateReportType(c *gin.Context) {
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req ReportTypeRequest
	if !bindJSON(c, &req) {
		return
	}

	rt, err := h.reportService.UpdateType(c.Request.Context(), id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rt)
}

func (h *ReportHandler) DeleteReportType(c *gin.Context) {
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	if err := h.reportService.DeleteType(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Reports ---

func (h *ReportHandler) ListReports(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var q struct {
		StudentID string `form:"studentId" binding:"omitempty,objectid"`
	}
	if !bindQuery(c, &q) {
		return
	}

	reports, err := h.reportService.List(c.Request.Context(), trainerID, parseOptionalObjectID(q.StudentID))
	if err != nil {
		respondError(c, err)
		return
	}
	if reports == nil {
		reports = []domain.Report{}
	}
	c.JSON(http.StatusOK, reports)
}

// GenerateReport godoc
// @Summary Build a progress report for a period and store it
// @Description A rendering or storage failure stores the report as failed and answers 502; it can be regenerated.
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param report body ReportRequest true "Report"
// @Success 201 {object} domain.Report
// @Failure 502 {object} ErrorResponse "Storage failure"
// @Router /reports [post]
func (h *ReportHandler) GenerateReport(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var req ReportRequest
	if !bindJSON(c, &req) {
		return
	}

	rep, err := h.reportService.Generate(c.Request.Context(), trainerID, service.ReportInput{
		StudentID:   parseObjectID(req.StudentID),
		TypeID:      parseObjectID(req.TypeID),
		Title:       req.Title,
		PeriodStart: parseDate(req.PeriodStart),
		PeriodEnd:   parseDate(req.PeriodEnd),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rep)
}

// GenerateReportBatch godoc
// @Summary Build the same report for several students
// @Description Answers 200 with one result per distinct student; per-student failures carry an error code.
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param batch body BatchReportRequest true "Students, type and period"
// @Success 200 {object} BatchReportResponse
// @Failure 400 {object} ErrorResponse "Invalid batch"
// @Router /reports/batch [post]
func (h *ReportHandler) GenerateReportBatch(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var req BatchReportRequest
	if !bindJSON(c, &req) {
		return
	}

	ids := make([]primitive.ObjectID, len(req.StudentIDs))
	for i, id := range req.StudentIDs {
		ids[i] = parseObjectID(id)
	}
	results, err := h.reportService.GenerateMany(c.Request.Context(), trainerID, service.BatchReportInput{
		StudentIDs:  ids,
		TypeID:      parseObjectID(req.TypeID),
		PeriodStart: parseDate(req.PeriodStart),
		PeriodEnd:   parseDate(req.PeriodEnd),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := BatchReportResponse{Results: results}
	for _, r := range results {
		if r.Code == "" {
			resp.Ready++
		} else {
			resp.Failed++
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ReportDashboard godoc
// @Summary Report counts by status and the latest reports
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.ReportDashboard
// @Router /reports/dashboard [get]
func (h *ReportHandler) ReportDashboard(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	dashboard, err := h.reportService.Dashboard(c.Request.Context(), trainerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h *ReportHandler) GetReport(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	rep, err := h.reportService.Get(c.Request.Context(), trainerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *ReportHandler) ReportStatus(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	rep, err := h.reportService.Get(c.Request.Context(), trainerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReportStatusResponse{
		ID:     rep.ID.Hex(),
		Status: rep.Status,
		Error:  rep.Error,
		Ready:  rep.Status == domain.ReportReady,
	})
}

func (h *ReportHandler) RegenerateReport(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	rep, err := h.reportService.Regenerate(c.Request.Context(), trainerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// DownloadReport returns a presigned URL for the stored HTML.
func (h *ReportHandler) DownloadReport(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	url, err := h.reportService.DownloadURL(c.Request.Context(), trainerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DownloadURLResponse{URL: url})
}

// EmailReport godoc
// @Summary Email a ready report
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param request body EmailReportRequest false "Recipient override"
// @Success 200 {object} domain.Report
// @Failure 409 {object} ErrorResponse "Report not ready"
// @Failure 502 {object} ErrorResponse "Delivery failed"
// @Router /reports/{id}/email [post]
func (h *ReportHandler) EmailReport(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req EmailReportRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	rep, err := h.reportService.Email(c.Request.Context(), trainerID, id, req.To)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *ReportHandler) DeleteReport(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	if err := h.reportService.Delete(c.Request.Context(), trainerID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
