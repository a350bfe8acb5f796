package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/cash-advance/internal/domain/ledger"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	actorHeader     = "X-Actor-ID"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	Field   string      `json:"field,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// statusFor maps a ledger rule to the HTTP status reported to clients
func statusFor(kind ledger.Kind) int {
	switch kind {
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindVersionConflict,
		ledger.KindAlreadyLiquidated,
		ledger.KindAdvanceLocked,
		ledger.KindMovementValidated,
		ledger.KindDuplicateAdvance,
		ledger.KindAssignmentInUse,
		ledger.KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// fail writes a domain error as a 4xx response and anything else as a
// generic 500 whose detail stays in the log
func (h *Handlers) fail(c *gin.Context, op string, err error) {
	if e, ok := ledger.AsError(err); ok {
		c.JSON(statusFor(e.Kind), Response{
			Success: false,
			Error:   e.Message,
			Kind:    string(e.Kind),
			Field:   e.Field,
		})
		return
	}
	h.logger.Error("Request failed", "operation", op, "request_id", c.GetString(requestIDKey), "error", err)
	c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
}

// requestIDMiddleware propagates or assigns a request id
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// actorID reads the acting user from the identity header set upstream
func actorID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.GetHeader(actorHeader), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "missing or invalid "+actorHeader+" header")
		return 0, false
	}
	return id, true
}

// pathID parses the :id route parameter
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}
