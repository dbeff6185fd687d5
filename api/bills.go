package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/billing"
	"github.com/gin-gonic/gin"
)

type BillHandler struct {
	service billing.BillingUseCase
}

type createBillRequest struct {
	CustomerID         string `json:"customer_id" binding:"required"`
	ServiceName        string `json:"service_name" binding:"required"`
	ServiceReferenceID string `json:"service_reference_id" binding:"required"`
	Description        string `json:"description"`
	AmountCents        int64  `json:"amount_cents"`
}

type billResponse struct {
	ID                 string `json:"id"`
	CustomerID         string `json:"customer_id"`
	ServiceName        string `json:"service_name"`
	ServiceReferenceID string `json:"service_reference_id"`
	Description        string `json:"description,omitempty"`
	AmountCents        int64  `json:"amount_cents"`
	Status             string `json:"status"`
	PaymentTimestamp   string `json:"payment_timestamp,omitempty"`
}

func NewBillHandler(service billing.BillingUseCase) *BillHandler {
	return &BillHandler{service: service}
}

// Register mounts the bill routes; listing and paying run behind auth.
func (h *BillHandler) Register(router *gin.RouterGroup, auth gin.HandlerFunc) {
	router.POST("/bills", h.create)
	router.GET("/bills/:id", h.get)
	router.GET("/bills", auth, h.list)
	router.POST("/bills/:id/pay", auth, h.pay)
}

func (h *BillHandler) create(c *gin.Context) {
	var req createBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	bill, err := h.service.CreateBill(c.Request.Context(), billing.CreateBillInput{
		CustomerID:         req.CustomerID,
		ServiceName:        domain.ServiceName(req.ServiceName),
		ServiceReferenceID: req.ServiceReferenceID,
		Description:        req.Description,
		AmountCents:        req.AmountCents,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBillResponse(*bill))
}

func (h *BillHandler) get(c *gin.Context) {
	bill, err := h.service.GetBill(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBillResponse(*bill))
}

func (h *BillHandler) list(c *gin.Context) {
	bills, err := h.service.ListBills(c.Request.Context(), customerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]billResponse, 0, len(bills))
	for _, b := range bills {
		resp = append(resp, toBillResponse(b))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BillHandler) pay(c *gin.Context) {
	bill, err := h.service.PayBill(c.Request.Context(), c.Param("id"), customerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBillResponse(*bill))
}

func toBillResponse(b domain.Bill) billResponse {
	resp := billResponse{
		ID:                 b.ID,
		CustomerID:         b.CustomerID,
		ServiceName:        string(b.ServiceName),
		ServiceReferenceID: b.ServiceReferenceID,
		Description:        b.Description,
		AmountCents:        b.AmountCents,
		Status:             string(b.Status),
	}
	if b.PaymentTimestamp != nil {
		resp.PaymentTimestamp = b.PaymentTimestamp.Format(time.RFC3339)
	}
	return resp
}
