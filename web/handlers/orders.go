package handlers

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "fleetwise/errors"
	"fleetwise/orders"
	"fleetwise/web/middleware"
	"fleetwise/web/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orders *services.OrderService
	logger *zap.Logger
}

type ParseOrderRequest struct {
	Message string `json:"message" form:"message"`
}

type DraftHeaderRequest struct {
	CustomerName *string `json:"customer_name"`
	SalesArea    *string `json:"sales_area"`
}

type DraftItemRequest struct {
	Item     string  `json:"item"`
	Quantity float64 `json:"quantity"`
	UOM      string  `json:"uom"`
}

func (r DraftItemRequest) toItem() orders.Item {
	return orders.Item{Item: r.Item, Quantity: r.Quantity, UOM: r.UOM}
}

func NewOrderHandler(orderService *services.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orderService,
		logger: logger,
	}
}

// Parse turns an order message into the session's draft.
func (h *OrderHandler) Parse(c *gin.Context) {
	var req ParseOrderRequest
	if err := c.ShouldBind(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		respondWithClientError(c, http.StatusBadRequest, "Order message cannot be empty")
		return
	}

	view := h.orders.Parse(c.Request.Context(), sessionID(c), message)
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) GetDraft(c *gin.Context) {
	view, err := h.orders.Draft(c.Request.Context(), sessionID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) UpdateHeader(c *gin.Context) {
	var req DraftHeaderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request")
		return
	}
	view, err := h.orders.SetHeader(c.Request.Context(), sessionID(c), req.CustomerName, req.SalesArea)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) AddItem(c *gin.Context) {
	var req DraftItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request")
		return
	}
	view, err := h.orders.AddItem(c.Request.Context(), sessionID(c), req.toItem())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) UpdateItem(c *gin.Context) {
	index, ok := itemIndex(c)
	if !ok {
		return
	}
	var req DraftItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request")
		return
	}
	view, err := h.orders.UpdateItem(c.Request.Context(), sessionID(c), index, req.toItem())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) DeleteItem(c *gin.Context) {
	index, ok := itemIndex(c)
	if !ok {
		return
	}
	view, err := h.orders.DeleteItem(c.Request.Context(), sessionID(c), index)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Create submits the session's draft.
func (h *OrderHandler) Create(c *gin.Context) {
	created, err := h.orders.Create(c.Request.Context(), sessionID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// fail maps input errors to 4xx and everything else to 500.
func (h *OrderHandler) fail(c *gin.Context, err error) {
	switch {
	case apperrors.IsNotFound(err):
		respondWithClientError(c, http.StatusNotFound, err.Error())
	case apperrors.IsInvalidInput(err):
		respondWithClientError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		respondWithError(c, http.StatusInternalServerError, err, "Order request failed", h.logger)
	}
}

func itemIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid item index")
		return 0, false
	}
	return index, true
}

func sessionID(c *gin.Context) uuid.UUID {
	return c.MustGet(middleware.SessionContextKey).(uuid.UUID)
}
