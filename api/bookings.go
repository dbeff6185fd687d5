package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type BookingHandler struct {
	service booking.BookingUseCase
}

type passengerRequest struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	BirthDate   string `json:"birth_date"`
	Gender      string `json:"gender"`
	IDNumber    string `json:"id_number"`
	Nationality string `json:"nationality"`
}

type createBookingRequest struct {
	FlightID       string             `json:"flight_id" binding:"required"`
	ClassFlightID  int64              `json:"class_flight_id" binding:"required"`
	ContactEmail   string             `json:"contact_email"`
	ContactPhone   string             `json:"contact_phone"`
	PassengerCount int                `json:"passenger_count"`
	Passengers     []passengerRequest `json:"passengers"`
	SeatIDs        []int64            `json:"seat_ids"`
}

type updateBookingRequest struct {
	ContactEmail *string            `json:"contact_email"`
	ContactPhone *string            `json:"contact_phone"`
	Passengers   []passengerRequest `json:"passengers"`
	SeatIDs      []int64            `json:"seat_ids"`
}

// confirmPaymentRequest is the body the billing service posts once a
// booking's bill is paid.
type confirmPaymentRequest struct {
	ServiceReferenceID string `json:"serviceReferenceId" binding:"required"`
	CustomerID         string `json:"customerId"`
}

type passengerResponse struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	BirthDate   string `json:"birth_date,omitempty"`
	Gender      string `json:"gender,omitempty"`
	IDNumber    string `json:"id_number"`
	Nationality string `json:"nationality,omitempty"`
}

type bookingSeatResponse struct {
	ID          int64  `json:"id"`
	SeatCode    string `json:"seat_code"`
	PassengerID string `json:"passenger_id"`
}

type bookingResponse struct {
	ID              string                `json:"id"`
	FlightID        string                `json:"flight_id"`
	ClassFlightID   int64                 `json:"class_flight_id"`
	ContactEmail    string                `json:"contact_email"`
	ContactPhone    string                `json:"contact_phone,omitempty"`
	PassengerCount  int                   `json:"passenger_count"`
	Status          string                `json:"status"`
	TotalPriceCents int64                 `json:"total_price_cents"`
	Passengers      []passengerResponse   `json:"passengers"`
	Seats           []bookingSeatResponse `json:"seats"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/bookings", h.create)
	router.POST("/bookings/payment-confirmations", h.confirmPayment)
	router.GET("/bookings/:id", h.get)
	router.PATCH("/bookings/:id", h.update)
	router.DELETE("/bookings/:id", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	passengers := make([]booking.PassengerInput, 0, len(req.Passengers))
	for _, p := range req.Passengers {
		born, err := parseDate(p.BirthDate)
		if err != nil {
			badRequest(c, "invalid birth_date "+p.BirthDate)
			return
		}
		passengers = append(passengers, booking.PassengerInput{
			FullName:    p.FullName,
			BirthDate:   born,
			Gender:      p.Gender,
			IDNumber:    p.IDNumber,
			Nationality: p.Nationality,
		})
	}
	count := req.PassengerCount
	if count == 0 {
		count = len(passengers)
	}

	created, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		FlightID:       req.FlightID,
		ClassFlightID:  req.ClassFlightID,
		ContactEmail:   req.ContactEmail,
		ContactPhone:   req.ContactPhone,
		PassengerCount: count,
		Passengers:     passengers,
		SeatIDs:        req.SeatIDs,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(created))
}

func (h *BookingHandler) get(c *gin.Context) {
	found, err := h.service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(found))
}

func (h *BookingHandler) update(c *gin.Context) {
	var req updateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	updates := make([]booking.PassengerUpdate, 0, len(req.Passengers))
	for _, p := range req.Passengers {
		born, err := parseDate(p.BirthDate)
		if err != nil {
			badRequest(c, "invalid birth_date "+p.BirthDate)
			return
		}
		updates = append(updates, booking.PassengerUpdate{
			ID:          p.ID,
			FullName:    p.FullName,
			BirthDate:   born,
			Gender:      p.Gender,
			Nationality: p.Nationality,
		})
	}

	updated, err := h.service.UpdateBooking(c.Request.Context(), c.Param("id"), booking.UpdateBookingInput{
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Passengers:   updates,
		SeatIDs:      req.SeatIDs,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(updated))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	cancelled, err := h.service.CancelBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(cancelled))
}

func (h *BookingHandler) confirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	paid, err := h.service.ConfirmPayment(c.Request.Context(), req.ServiceReferenceID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(paid))
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:              b.ID,
		FlightID:        b.FlightID,
		ClassFlightID:   b.ClassFlightID,
		ContactEmail:    b.ContactEmail,
		ContactPhone:    b.ContactPhone,
		PassengerCount:  b.PassengerCount,
		Status:          b.Status.String(),
		TotalPriceCents: b.TotalPriceCents,
		Passengers:      make([]passengerResponse, 0, len(b.Passengers)),
		Seats:           make([]bookingSeatResponse, 0, len(b.Seats)),
	}
	for _, p := range b.Passengers {
		pr := passengerResponse{
			ID:          p.ID,
			FullName:    p.FullName,
			Gender:      p.Gender,
			IDNumber:    p.IDNumber,
			Nationality: p.Nationality,
		}
		if !p.BirthDate.IsZero() {
			pr.BirthDate = p.BirthDate.Format(dateLayout)
		}
		resp.Passengers = append(resp.Passengers, pr)
	}
	for _, s := range b.Seats {
		sr := bookingSeatResponse{ID: s.ID, SeatCode: s.SeatCode}
		if s.PassengerID != nil {
			sr.PassengerID = *s.PassengerID
		}
		resp.Seats = append(resp.Seats, sr)
	}
	return resp
}
