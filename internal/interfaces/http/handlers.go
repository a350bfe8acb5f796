package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/application/service"
	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	health   HealthFunc
	version  string
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, health HealthFunc, version string, logger Logger) *Handlers {
	return &Handlers{services: services, health: health, version: version, logger: logger}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateAdvanceRequest is the body of POST /advances
type CreateAdvanceRequest struct {
	SeasonID            int64  `json:"season_id" binding:"required,gt=0"`
	ResponsiblePersonID int64  `json:"responsible_person_id" binding:"required,gt=0"`
	CostCenterID        int64  `json:"cost_center_id" binding:"gte=0"`
	DefaultCurrency     string `json:"default_currency" binding:"omitempty,len=3"`
	Description         string `json:"description" binding:"max=500"`
}

// ListAdvancesQuery holds the filters of GET /advances
type ListAdvancesQuery struct {
	SeasonID            *int64 `form:"season_id"`
	ResponsiblePersonID *int64 `form:"responsible_person_id"`
	Liquidated          *bool  `form:"liquidated"`
	Limit               int    `form:"limit" binding:"gte=0"`
	Offset              int    `form:"offset" binding:"gte=0"`
}

// UpdateMovementRequest is the body of PUT /movements/:id. Absent fields are
// left unchanged; Version is the optimistic concurrency token (0 skips it).
type UpdateMovementRequest struct {
	Version                              int64                   `json:"version" binding:"gte=0"`
	AdvanceID                            *int64                  `json:"advance_id"`
	MovementDate                         *time.Time              `json:"movement_date"`
	Kind                                 *entity.MovementKind    `json:"kind"`
	CostCenterID                         *int64                  `json:"cost_center_id"`
	Amount                               *decimal.Decimal        `json:"amount"`
	Currency                             *string                 `json:"currency"`
	ExchangeRate                         *decimal.Decimal        `json:"exchange_rate"`
	Description                          *string                 `json:"description"`
	CounterpartyID                       *int64                  `json:"counterparty_id"`
	ClearCounterparty                    bool                    `json:"clear_counterparty"`
	Expense                              *entity.ExpenseDetail   `json:"expense"`
	IncludedInAdvanceCalculation         *bool                   `json:"included_in_advance_calculation"`
	IncludedInCrewLiquidationCalculation *bool                   `json:"included_in_crew_liquidation_calculation"`
	HasNoInvoice                         *bool                   `json:"has_no_invoice"`
	Invoice                              *entity.InvoiceDocument `json:"invoice"`
}

// DeleteMovementQuery carries the concurrency token of DELETE /movements/:id
type DeleteMovementQuery struct {
	Version int64 `form:"version" binding:"gte=0"`
}

// RegisterCashMovementRequest is the body of POST /cash-movements
type RegisterCashMovementRequest struct {
	AdvanceID   *int64          `json:"advance_id"`
	MovementID  *int64          `json:"movement_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" binding:"required"`
	Description string          `json:"description" binding:"max=500"`
}

// ReasonRequest is the body of reject and revert
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
	}
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			status = http.StatusServiceUnavailable
			resp.Status = "unhealthy"
		}
	}
	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// CreateAdvance handles POST /api/v1/advances
func (h *Handlers) CreateAdvance(c *gin.Context) {
	actor, valid := actorID(c)
	if !valid {
		return
	}
	var req CreateAdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	advance, err := h.services.Advances.CreateAdvance(c.Request.Context(), service.CreateAdvanceInput{
		SeasonID:            req.SeasonID,
		ResponsiblePersonID: req.ResponsiblePersonID,
		CostCenterID:        req.CostCenterID,
		DefaultCurrency:     req.DefaultCurrency,
		Description:         utils.SanitizeText(req.Description),
	}, actor)
	if err != nil {
		h.fail(c, "create advance", err)
		return
	}
	ok(c, http.StatusCreated, advance)
}

// ListAdvances handles GET /api/v1/advances
func (h *Handlers) ListAdvances(c *gin.Context) {
	var q ListAdvancesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	advances, err := h.services.Advances.ListAdvances(c.Request.Context(), entity.AdvanceFilter{
		SeasonID:            q.SeasonID,
		ResponsiblePersonID: q.ResponsiblePersonID,
		Liquidated:          q.Liquidated,
		Limit:               q.Limit,
		Offset:              q.Offset,
	})
	if err != nil {
		h.fail(c, "list advances", err)
		return
	}
	if advances == nil {
		advances = []*entity.Advance{}
	}
	ok(c, http.StatusOK, advances)
}

// GetAdvance handles GET /api/v1/advances/:id
func (h *Handlers) GetAdvance(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	agg, err := h.services.Advances.GetAdvance(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get advance", err)
		return
	}
	ok(c, http.StatusOK, agg)
}

// GetBalance handles GET /api/v1/advances/:id/balance
func (h *Handlers) GetBalance(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	balance, err := h.services.Advances.GetBalance(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get balance", err)
		return
	}
	ok(c, http.StatusOK, balance)
}

// GetAssignments handles GET /api/v1/advances/:id/assignments
func (h *Handlers) GetAssignments(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	drawdown, err := h.services.Advances.GetAssignments(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get assignments", err)
		return
	}
	ok(c, http.StatusOK, drawdown)
}

// GetHistory handles GET /api/v1/advances/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	history, err := h.services.Advances.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get history", err)
		return
	}
	ok(c, http.StatusOK, history)
}

// Liquidate handles POST /api/v1/advances/:id/liquidate
func (h *Handlers) Liquidate(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	actor, valid := actorID(c)
	if !valid {
		return
	}
	result, err := h.services.Liquidation.Liquidate(c.Request.Context(), id, actor)
	if err != nil {
		h.fail(c, "liquidate advance", err)
		return
	}
	ok(c, http.StatusOK, result)
}

// ExportStatement handles GET /api/v1/advances/:id/statement
func (h *Handlers) ExportStatement(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	// rendered into memory so a failure can still be reported as JSON
	var buf bytes.Buffer
	if err := h.services.Statements.Export(c.Request.Context(), id, &buf); err != nil {
		h.fail(c, "export statement", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="advance-%d-statement.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// CreateMovement handles POST /api/v1/advances/:id/movements
func (h *Handlers) CreateMovement(c *gin.Context) {
	advanceID, valid := pathID(c)
	if !valid {
		return
	}
	actor, valid := actorID(c)
	if !valid {
		return
	}
	var draft entity.Movement
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, err.Error())
		return
	}
	draft.Description = utils.SanitizeText(draft.Description)

	result, err := h.services.Movements.CreateMovement(c.Request.Context(), advanceID, &draft, actor)
	if err != nil {
		h.fail(c, "create movement", err)
		return
	}
	ok(c, http.StatusCreated, result)
}

// GetMovement handles GET /api/v1/movements/:id
func (h *Handlers) GetMovement(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	m, err := h.services.Movements.GetMovement(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get movement", err)
		return
	}
	ok(c, http.StatusOK, m)
}

// UpdateMovement handles PUT /api/v1/movements/:id
func (h *Handlers) UpdateMovement(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	actor, valid := actorID(c)
	if !valid {
		return
	}
	var req UpdateMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.services.Movements.UpdateMovement(c.Request.Context(), id, req.Version, req.patch(), actor)
	if err != nil {
		h.fail(c, "update movement", err)
		return
	}
	ok(c, http.StatusOK, result)
}

// DeleteMovement handles DELETE /api/v1/movements/:id
func (h *Handlers) DeleteMovement(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	actor, valid := actorID(c)
	if !valid {
		return
	}
	var q DeleteMovementQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid version")
		return
	}

	balance, err := h.services.Movements.DeleteMovement(c.Request.Context(), id, q.Version, actor)
	if err != nil {
		h.fail(c, "delete movement", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"balance": balance})
}

// AttachDocuments handles POST /api/v1/movements/:id/documents (multipart).
// Files are sent under "files"; "slot" selects receipt or operation_receipt.
func (h *Handlers) AttachDocuments(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	actor, valid := actorID(c)
	if !valid {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "expected a multipart form")
		return
	}

	files := make([]port.DocumentFile, 0, len(form.File["files"]))
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "unreadable upload "+fh.Filename)
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			badRequest(c, "unreadable upload "+fh.Filename)
			return
		}
		files = append(files, port.DocumentFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     content,
		})
	}

	slot := service.DocumentSlot(c.DefaultPostForm("slot", string(service.SlotReceipt)))
	result, err := h.services.Movements.AttachDocuments(c.Request.Context(), id, slot, files, actor)
	if err != nil {
		h.fail(c, "attach documents", err)
		return
	}
	ok(c, http.StatusOK, result)
}

// RegisterCashMovement handles POST /api/v1/cash-movements
func (h *Handlers) RegisterCashMovement(c *gin.Context) {
	actor, valid := actorID(c)
	if !valid {
		return
	}
	var req RegisterCashMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	cm, err := h.services.Treasury.Register(c.Request.Context(), service.RegisterCashMovementInput{
		AdvanceID:   req.AdvanceID,
		MovementID:  req.MovementID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: utils.SanitizeText(req.Description),
	}, actor)
	if err != nil {
		h.fail(c, "register cash movement", err)
		return
	}
	ok(c, http.StatusCreated, cm)
}

// GetCashMovement handles GET /api/v1/cash-movements/:id
func (h *Handlers) GetCashMovement(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	cm, err := h.services.Treasury.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get cash movement", err)
		return
	}
	ok(c, http.StatusOK, cm)
}

// ListCashMovements handles GET /api/v1/advances/:id/cash-movements
func (h *Handlers) ListCashMovements(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	list, err := h.services.Treasury.ListByAdvance(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "list cash movements", err)
		return
	}
	if list == nil {
		list = []*entity.CashMovement{}
	}
	ok(c, http.StatusOK, list)
}

// ApproveCashMovement handles POST /api/v1/cash-movements/:id/approve
func (h *Handlers) ApproveCashMovement(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	actor, valid := actorID(c)
	if !valid {
		return
	}
	cm, err := h.services.Treasury.Approve(c.Request.Context(), id, actor)
	if err != nil {
		h.fail(c, "approve cash movement", err)
		return
	}
	ok(c, http.StatusOK, cm)
}

// RejectCashMovement handles POST /api/v1/cash-movements/:id/reject
func (h *Handlers) RejectCashMovement(c *gin.Context) {
	id, actor, reason, valid := h.reasonRequest(c)
	if !valid {
		return
	}
	cm, err := h.services.Treasury.Reject(c.Request.Context(), id, actor, reason)
	if err != nil {
		h.fail(c, "reject cash movement", err)
		return
	}
	ok(c, http.StatusOK, cm)
}

// RevertCashMovement handles POST /api/v1/cash-movements/:id/revert
func (h *Handlers) RevertCashMovement(c *gin.Context) {
	id, actor, reason, valid := h.reasonRequest(c)
	if !valid {
		return
	}
	result, err := h.services.Treasury.Revert(c.Request.Context(), id, actor, reason)
	if err != nil {
		h.fail(c, "revert cash movement", err)
		return
	}
	ok(c, http.StatusCreated, result)
}

// reasonRequest parses id, actor and the optional reason body. An empty
// reason is passed through so the service reports REASON_REQUIRED.
func (h *Handlers) reasonRequest(c *gin.Context) (int64, int64, string, bool) {
	id, valid := pathID(c)
	if !valid {
		return 0, 0, "", false
	}
	actor, valid := actorID(c)
	if !valid {
		return 0, 0, "", false
	}
	var req ReasonRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return 0, 0, "", false
		}
	}
	return id, actor, utils.SanitizeText(req.Reason), true
}

func (r *UpdateMovementRequest) patch() *entity.MovementPatch {
	return &entity.MovementPatch{
		AdvanceID:                            r.AdvanceID,
		MovementDate:                         r.MovementDate,
		Kind:                                 r.Kind,
		CostCenterID:                         r.CostCenterID,
		Amount:                               r.Amount,
		Currency:                             r.Currency,
		ExchangeRate:                         r.ExchangeRate,
		Description:                          utils.SanitizeTextPtr(r.Description),
		CounterpartyID:                       r.CounterpartyID,
		ClearCounterparty:                    r.ClearCounterparty,
		Expense:                              r.Expense,
		IncludedInAdvanceCalculation:         r.IncludedInAdvanceCalculation,
		IncludedInCrewLiquidationCalculation: r.IncludedInCrewLiquidationCalculation,
		HasNoInvoice:                         r.HasNoInvoice,
		Invoice:                              r.Invoice,
	}
}
