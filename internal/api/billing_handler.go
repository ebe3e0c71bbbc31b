package api

import (
	"net/http"
	"strings"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/repository"
	"formafit/trainer-app/internal/service"

	"github.com/gin-gonic/gin"
)

type BillingHandler struct {
	billingService service.BillingService
	defaultMonths  int
}

func NewBillingHandler(billingService service.BillingService, defaultMonths int) *BillingHandler {
	return &BillingHandler{billingService: billingService, defaultMonths: defaultMonths}
}

// --- DTOs ---

type PlanRequest struct {
	Name             string  `json:"name" binding:"required,max=100"`
	Description      string  `json:"description" binding:"max=500"`
	Price            float64 `json:"price" binding:"gte=0"`
	IncludedSessions int     `json:"includedSessions" binding:"gte=0"`
	Active           *bool   `json:"active"`
}

type ContractRequest struct {
	StudentID   string   `json:"studentId" binding:"required,objectid"`
	PlanID      string   `json:"planId" binding:"required,objectid"`
	CustomPrice *float64 `json:"customPrice" binding:"omitempty,gte=0"`
	DueDay      int      `json:"dueDay" binding:"omitempty,min=1,max=31"`
	StartDate   string   `json:"startDate" binding:"omitempty,datetime=2006-01-02"`
}

type GenerateInvoicesRequest struct {
	Months int `json:"months" binding:"omitempty,min=1,max=24"`
}

type InvoiceRequest struct {
	StudentID  string               `json:"studentId" binding:"required,objectid"`
	ContractID string               `json:"contractId" binding:"omitempty,objectid"`
	RefMonth   int                  `json:"refMonth" binding:"required,min=1,max=12"`
	RefYear    int                  `json:"refYear" binding:"required,min=2000,max=2200"`
	Amount     float64              `json:"amount" binding:"gte=0"`
	DueDate    string               `json:"dueDate" binding:"omitempty,datetime=2006-01-02"`
	Status     domain.InvoiceStatus `json:"status" binding:"omitempty,oneof=pending paid overdue"`
	Notes      string               `json:"notes"`
}

// InvoiceListQuery filters invoices. Status takes a comma separated list.
type InvoiceListQuery struct {
	StudentID string `form:"studentId" binding:"omitempty,objectid"`
	Search    string `form:"search"`
	Status    string `form:"status"`
	Month     int    `form:"month" binding:"omitempty,min=1,max=12"`
	Year      int    `form:"year" binding:"omitempty,min=2000,max=2200"`
}

func (r InvoiceRequest) toInput() service.InvoiceInput {
	return service.InvoiceInput{
		StudentID:  parseObjectID(r.StudentID),
		ContractID: parseOptionalObjectID(r.ContractID),
		RefMonth:   r.RefMonth,
		RefYear:    r.RefYear,
		Amount:     r.Amount,
		DueDate:    parseDate(r.DueDate),
		Status:     r.Status,
		Notes:      r.Notes,
	}
}

func (r PlanRequest) toInput() service.PlanInput {
	return service.PlanInput{
		Name:             r.Name,
		Description:      r.Description,
		Price:            r.Price,
		IncludedSessions: r.IncludedSessions,
		Active:           r.Active,
	}
}

// --- Plans ---

func (h *BillingHandler) ListPlans(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}

	plans, err := h.billingService.ListPlans(c.Request.Context(), trainerID, c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	if plans == nil {
		plans = []domain.BillingPlan{}
	}
	c.JSON(http.StatusOK, plans)
}

func (h *BillingHandler) CreatePlan(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var req PlanRequest
	if !bindJSON(c, &req) {
		return
	}

	plan, err := h.billingService.CreatePlan(c.Request.Context(), trainerID, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *BillingHandler) GetPlan(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	plan, err := h.billingService.GetPlan(c.Request.Context(), trainerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *BillingHandler) UpdatePlan(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req PlanRequest
	if !bindJSON(c, &req) {
		return
	}

	plan, err := h.billingService.UpdatePlan(c.Request.Context(), trainerID, id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// DeletePlan refuses plans still referenced by a contract (409).
func (h *BillingHandler) DeletePlan(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	if err := h.billingService.DeletePlan(c.Request.Context(), trainerID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Contracts ---

func (h *BillingHandler) ListContracts(c *gin.Context) {
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

	contracts, err := h.billingService.ListContracts(c.Request.Context(), trainerID, parseOptionalObjectID(q.StudentID))
	if err != nil {
		respondError(c, err)
		return
	}
	if contracts == nil {
		contracts = []domain.Contract{}
	}
	c.JSON(http.StatusOK, contracts)
}

// CreateContract godoc
// @Summary Sign a student up to a billing plan
// @Tags Billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param contract body ContractRequest true "Contract"
// @Success 201 {object} domain.Contract
// @Failure 404 {object} ErrorResponse "Student or plan not found"
// @Router /contracts [post]
func (h *BillingHandler) CreateContract(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var req ContractRequest
	if !bindJSON(c, &req) {
		return
	}

	contract, err := h.billingService.CreateContract(c.Request.Context(), trainerID, service.ContractInput{
		StudentID:   parseObjectID(req.StudentID),
		PlanID:      parseObjectID(req.PlanID),
		CustomPrice: req.CustomPrice,
		DueDay:      req.DueDay,
		StartDate:   parseDate(req.StartDate),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}

func (h *BillingHandler) GetContract(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	contract, err := h.billingService.GetContract(c.Request.Context(), trainerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *BillingHandler) DeactivateContract(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	contract, err := h.billingService.DeactivateContract(c.Request.Context(), trainerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

// GenerateInvoices godoc
// @Summary Issue the contract's invoices for the next months
// @Description Months that already have an invoice for the student are skipped, so repeating the call is safe.
// @Tags Billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Contract ID"
// @Param request body GenerateInvoicesRequest false "Number of months (default from config)"
// @Success 201 {array} domain.Invoice "Invoices created by this call"
// @Router /contracts/{id}/invoices [post]
func (h *BillingHandler) GenerateInvoices(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req GenerateInvoicesRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	if req.Months == 0 {
		req.Months = h.defaultMonths
	}

	invoices, err := h.billingService.GenerateInvoices(c.Request.Context(), trainerID, id, req.Months)
	if err != nil {
		respondError(c, err)
		return
	}
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	c.JSON(http.StatusCreated, invoices)
}

// --- Invoices ---

// ListInvoices godoc
// @Summary List invoices with their totals
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Student ID"
// @Param search query string false "Student name"
// @Param status query string false "Comma separated statuses"
// @Param month query int false "Reference month"
// @Param year query int false "Reference year"
// @Success 200 {object} service.InvoiceList
// @Router /invoices [get]
func (h *BillingHandler) ListInvoices(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var q InvoiceListQuery
	if !bindQuery(c, &q) {
		return
	}

	filter := repository.InvoiceFilter{
		StudentID: parseOptionalObjectID(q.StudentID),
		Search:    q.Search,
		Month:     q.Month,
		Year:      q.Year,
	}
	for _, s := range strings.Split(q.Status, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		status := domain.InvoiceStatus(s)
		if !status.Valid() {
			abortWithError(c, http.StatusBadRequest, service.CodeValidation, "status: '"+s+"' is not a valid invoice status")
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	list, err := h.billingService.ListInvoices(c.Request.Context(), trainerID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if list.Invoices == nil {
		list.Invoices = []domain.Invoice{}
	}
	c.JSON(http.StatusOK, list)
}

// CreateInvoice godoc
// @Summary Create an invoice by hand
// @Description Status becomes overdue on save when the due date has passed.
// @Tags Billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param invoice body InvoiceRequest true "Invoice"
// @Success 201 {object} domain.Invoice
// @Failure 409 {object} ErrorResponse "Invoice exists for that student and month"
// @Router /invoices [post]
func (h *BillingHandler) CreateInvoice(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	var req InvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.billingService.CreateInvoice(c.Request.Context(), trainerID, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *BillingHandler) GetInvoice(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.billingService.GetInvoice(c.Request.Context(), trainerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// UpdateInvoice answers 422 for a status change the invoice machine forbids.
func (h *BillingHandler) UpdateInvoice(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}
	var req InvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.billingService.UpdateInvoice(c.Request.Context(), trainerID, id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *BillingHandler) MarkInvoicePaid(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.billingService.MarkPaid(c.Request.Context(), trainerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *BillingHandler) DeleteInvoice(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}
	id, ok := pathObjectID(c, "id")
	if !ok {
		return
	}

	if err := h.billingService.DeleteInvoice(c.Request.Context(), trainerID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Dashboard godoc
// @Summary Financial overview for the current month
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.BillingDashboard
// @Router /billing/dashboard [get]
func (h *BillingHandler) Dashboard(c *gin.Context) {
	trainerID, ok := trainerIDFromContext(c)
	if !ok {
		return
	}

	dashboard, err := h.billingService.Dashboard(c.Request.Context(), trainerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}
