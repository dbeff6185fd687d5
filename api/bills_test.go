package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/billing"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBillingUseCase is a mock implementation of billing.BillingUseCase
type MockBillingUseCase struct {
	mock.Mock
}

func (m *MockBillingUseCase) CreateBill(ctx context.Context, input billing.CreateBillInput) (*domain.Bill, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bill), args.Error(1)
}

func (m *MockBillingUseCase) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bill), args.Error(1)
}

func (m *MockBillingUseCase) ListBills(ctx context.Context, customerID string) ([]domain.Bill, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).([]domain.Bill), args.Error(1)
}

func (m *MockBillingUseCase) PayBill(ctx context.Context, billID, customerID string) (*domain.Bill, error) {
	args := m.Called(ctx, billID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bill), args.Error(1)
}

func sampleBill(status domain.BillStatus) *domain.Bill {
	return &domain.Bill{
		ID:                 "bill-1",
		CustomerID:         "cust-1",
		ServiceName:        domain.ServiceFlight,
		ServiceReferenceID: "PK-GAA-001-CGK-DPS-001",
		AmountCents:        150000,
		Status:             status,
	}
}

func TestBillHandler_create(t *testing.T) {
	mockService := &MockBillingUseCase{}
	handler := NewBillHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body := `{"customer_id":"cust-1","service_name":"Flight","service_reference_id":"PK-GAA-001-CGK-DPS-001","amount_cents":150000}`
	c.Request = httptest.NewRequest("POST", "/bills", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	input := billing.CreateBillInput{
		CustomerID:         "cust-1",
		ServiceName:        domain.ServiceFlight,
		ServiceReferenceID: "PK-GAA-001-CGK-DPS-001",
		AmountCents:        150000,
	}
	mockService.On("CreateBill", c.Request.Context(), input).Return(sampleBill(domain.BillStatusUnpaid), nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response billResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "UNPAID", response.Status)
	assert.Empty(t, response.PaymentTimestamp)

	mockService.AssertExpectations(t)
}

func TestBillHandler_pay(t *testing.T) {
	paidAt := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

	testCases := []struct {
		name       string
		bill       *domain.Bill
		err        error
		wantStatus int
	}{
		{"paid", func() *domain.Bill { b := sampleBill(domain.BillStatusPaid); b.PaymentTimestamp = &paidAt; return b }(), nil, http.StatusOK},
		{"already paid", nil, domain.Statef("bill bill-1 is PAID"), http.StatusConflict},
		{"other customer", nil, domain.Authorizationf("bill bill-1 does not belong to customer cust-1"), http.StatusForbidden},
		{"balance down", nil, domain.Upstreamf(errors.New("timeout"), "debit balance"), http.StatusBadGateway},
		{"missing", nil, domain.NotFoundf("bill bill-1"), http.StatusNotFound},
		{"unexpected", nil, errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &MockBillingUseCase{}
			handler := NewBillHandler(mockService)

			gin.SetMode(gin.TestMode)
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			c.Params = gin.Params{{Key: "id", Value: "bill-1"}}
			c.Request = httptest.NewRequest("POST", "/bills/bill-1/pay", nil)
			c.Set(customerIDKey, "cust-1")

			if tc.bill != nil {
				mockService.On("PayBill", c.Request.Context(), "bill-1", "cust-1").Return(tc.bill, nil)
			} else {
				mockService.On("PayBill", c.Request.Context(), "bill-1", "cust-1").Return(nil, tc.err)
			}

			handler.pay(c)

			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantStatus == http.StatusOK {
				var response billResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, "2026-05-01T09:30:00Z", response.PaymentTimestamp)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestBillHandler_list(t *testing.T) {
	mockService := &MockBillingUseCase{}
	handler := NewBillHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/bills", nil)
	c.Set(customerIDKey, "cust-1")

	mockService.On("ListBills", c.Request.Context(), "cust-1").Return([]domain.Bill{*sampleBill(domain.BillStatusUnpaid)}, nil)

	handler.list(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response []billResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response, 1)

	mockService.AssertExpectations(t)
}
