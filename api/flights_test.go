package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/flights"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFlightUseCase is a mock implementation of flights.FlightUseCase
type MockFlightUseCase struct {
	mock.Mock
}

func (m *MockFlightUseCase) CreateFlight(ctx context.Context, input flights.CreateFlightInput) (*flights.FlightDetails, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*flights.FlightDetails), args.Error(1)
}

func (m *MockFlightUseCase) UpdateFlight(ctx context.Context, id string, input flights.UpdateFlightInput) (*domain.Flight, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) CancelFlight(ctx context.Context, id string) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) GetFlight(ctx context.Context, id string) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) ListFlights(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightUseCase) ListClasses(ctx context.Context, flightID string) ([]domain.ClassFlight, error) {
	args := m.Called(ctx, flightID)
	return args.Get(0).([]domain.ClassFlight), args.Error(1)
}

func (m *MockFlightUseCase) ListSeats(ctx context.Context, classFlightID int64) ([]domain.Seat, error) {
	args := m.Called(ctx, classFlightID)
	return args.Get(0).([]domain.Seat), args.Error(1)
}

func (m *MockFlightUseCase) ResizeClass(ctx context.Context, flightID string, classFlightID int64, newCapacity int) (*domain.ClassFlight, error) {
	args := m.Called(ctx, flightID, classFlightID, newCapacity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClassFlight), args.Error(1)
}

func (m *MockFlightUseCase) ValidateSchedule(ctx context.Context, input flights.ScheduleInput) error {
	return m.Called(ctx, input).Error(0)
}

func (m *MockFlightUseCase) ValidateCapacity(ctx context.Context, airplaneID string, totalSeats int) error {
	return m.Called(ctx, airplaneID, totalSeats).Error(0)
}

func (m *MockFlightUseCase) RefreshStatuses(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

var departure = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func sampleFlight() domain.Flight {
	return domain.Flight{
		ID:            "PK-GAA-001",
		AirlineCode:   "GA",
		AirplaneID:    "PK-GAA",
		OriginAirport: "CGK",
		DestAirport:   "DPS",
		DepartureTime: departure,
		ArrivalTime:   departure.Add(2 * time.Hour),
		Status:        domain.FlightStatusScheduled,
	}
}

func TestFlightHandler_create(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body := `{"airplane_id":"PK-GAA","origin_airport":"CGK","dest_airport":"DPS",
		"departure_time":"2026-05-01T10:00:00Z","arrival_time":"2026-05-01T12:00:00Z",
		"classes":[{"class_type":"economy","seat_capacity":2,"price_cents":150000}]}`
	c.Request = httptest.NewRequest("POST", "/flights", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	input := flights.CreateFlightInput{
		AirplaneID:    "PK-GAA",
		OriginAirport: "CGK",
		DestAirport:   "DPS",
		DepartureTime: departure,
		ArrivalTime:   departure.Add(2 * time.Hour),
		Classes:       []flights.ClassInput{{ClassType: domain.ClassEconomy, SeatCapacity: 2, PriceCents: 150000}},
	}
	details := &flights.FlightDetails{
		Flight:  sampleFlight(),
		Classes: []domain.ClassFlight{{ID: 1, FlightID: "PK-GAA-001", ClassType: domain.ClassEconomy, SeatCapacity: 2, AvailableSeats: 2, PriceCents: 150000}},
	}
	mockService.On("CreateFlight", c.Request.Context(), input).Return(details, nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response flightResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "PK-GAA-001", response.ID)
	assert.Equal(t, "SCHEDULED", response.Status)
	require.Len(t, response.Classes, 1)
	assert.Equal(t, 2, response.Classes[0].AvailableSeats)

	mockService.AssertExpectations(t)
}

func TestFlightHandler_create_overlap(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body := `{"airplane_id":"PK-GAA","origin_airport":"CGK","dest_airport":"DPS",
		"departure_time":"2026-05-01T10:00:00Z","arrival_time":"2026-05-01T12:00:00Z","classes":[]}`
	c.Request = httptest.NewRequest("POST", "/flights", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("CreateFlight", c.Request.Context(), mock.Anything).
		Return(nil, domain.Validationf("airplane PK-GAA is already scheduled"))

	handler.create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already scheduled")
}

func TestFlightHandler_list(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/flights", nil)

	mockService.On("ListFlights", c.Request.Context()).Return([]domain.Flight{sampleFlight()}, nil)

	handler.list(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response []flightResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response, 1)
	assert.Equal(t, "2026-05-01T10:00:00Z", response[0].DepartureTime)

	mockService.AssertExpectations(t)
}

func TestFlightHandler_get_notFound(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "id", Value: "PK-GAA-404"}}
	c.Request = httptest.NewRequest("GET", "/flights/PK-GAA-404", nil)

	mockService.On("GetFlight", c.Request.Context(), "PK-GAA-404").Return(nil, domain.NotFoundf("flight PK-GAA-404"))

	handler.get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockService.AssertExpectations(t)
}

func TestFlightHandler_cancel_inProgress(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "id", Value: "PK-GAA-001"}}
	c.Request = httptest.NewRequest("DELETE", "/flights/PK-GAA-001", nil)

	mockService.On("CancelFlight", c.Request.Context(), "PK-GAA-001").
		Return(nil, domain.Statef("cannot delete flight PK-GAA-001 in progress or finished"))

	handler.cancel(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	mockService.AssertExpectations(t)
}

func TestFlightHandler_resizeClass(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "id", Value: "PK-GAA-001"}, {Key: "classId", Value: "7"}}
	c.Request = httptest.NewRequest("PUT", "/flights/PK-GAA-001/classes/7", bytes.NewBufferString(`{"seat_capacity":1}`))
	c.Request.Header.Set("Content-Type", "application/json")

	mockService.On("ResizeClass", c.Request.Context(), "PK-GAA-001", int64(7), 1).
		Return(nil, domain.Capacityf("cannot shrink class flight 7 below 2 booked seats"))

	handler.resizeClass(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockService.AssertExpectations(t)
}

func TestFlightHandler_listSeats_invalidID(t *testing.T) {
	mockService := &MockFlightUseCase{}
	handler := NewFlightHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Params = gin.Params{{Key: "classId", Value: "abc"}}
	c.Request = httptest.NewRequest("GET", "/class-flights/abc/seats", nil)

	handler.listSeats(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "ListSeats", mock.Anything, mock.Anything)
}
