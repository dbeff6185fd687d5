package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/flights"
	"github.com/gin-gonic/gin"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

type classRequest struct {
	ClassType    domain.ClassType `json:"class_type"`
	SeatCapacity int              `json:"seat_capacity"`
	PriceCents   int64            `json:"price_cents"`
}

type createFlightRequest struct {
	AirlineCode      string         `json:"airline_code"`
	AirplaneID       string         `json:"airplane_id" binding:"required"`
	OriginAirport    string         `json:"origin_airport" binding:"required"`
	DestAirport      string         `json:"dest_airport" binding:"required"`
	DepartureTime    time.Time      `json:"departure_time" binding:"required"`
	ArrivalTime      time.Time      `json:"arrival_time" binding:"required"`
	Terminal         string         `json:"terminal"`
	Gate             string         `json:"gate"`
	BaggageAllowance int            `json:"baggage_allowance"`
	Classes          []classRequest `json:"classes"`
}

type updateFlightRequest struct {
	DepartureTime    *time.Time `json:"departure_time"`
	ArrivalTime      *time.Time `json:"arrival_time"`
	Terminal         *string    `json:"terminal"`
	Gate             *string    `json:"gate"`
	BaggageAllowance *int       `json:"baggage_allowance"`
}

type resizeClassRequest struct {
	SeatCapacity int `json:"seat_capacity"`
}

type flightResponse struct {
	ID               string          `json:"id"`
	AirlineCode      string          `json:"airline_code"`
	AirplaneID       string          `json:"airplane_id"`
	OriginAirport    string          `json:"origin_airport"`
	DestAirport      string          `json:"dest_airport"`
	DepartureTime    string          `json:"departure_time"`
	ArrivalTime      string          `json:"arrival_time"`
	Terminal         string          `json:"terminal,omitempty"`
	Gate             string          `json:"gate,omitempty"`
	BaggageAllowance int             `json:"baggage_allowance"`
	Status           string          `json:"status"`
	Classes          []classResponse `json:"classes,omitempty"`
}

type classResponse struct {
	ID             int64  `json:"id"`
	FlightID       string `json:"flight_id"`
	ClassType      string `json:"class_type"`
	SeatCapacity   int    `json:"seat_capacity"`
	AvailableSeats int    `json:"available_seats"`
	PriceCents     int64  `json:"price_cents"`
}

type seatResponse struct {
	ID            int64  `json:"id"`
	ClassFlightID int64  `json:"class_flight_id"`
	SeatCode      string `json:"seat_code"`
	IsBooked      bool   `json:"is_booked"`
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.POST("/flights", h.create)
	router.GET("/flights", h.list)
	router.GET("/flights/:id", h.get)
	router.PATCH("/flights/:id", h.update)
	router.DELETE("/flights/:id", h.cancel)
	router.GET("/flights/:id/classes", h.listClasses)
	router.PUT("/flights/:id/classes/:classId", h.resizeClass)
	router.GET("/class-flights/:classId/seats", h.listSeats)
}

func (h *FlightHandler) create(c *gin.Context) {
	var req createFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	classes := make([]flights.ClassInput, 0, len(req.Classes))
	for _, cl := range req.Classes {
		classes = append(classes, flights.ClassInput{ClassType: cl.ClassType, SeatCapacity: cl.SeatCapacity, PriceCents: cl.PriceCents})
	}
	details, err := h.service.CreateFlight(c.Request.Context(), flights.CreateFlightInput{
		AirlineCode:      req.AirlineCode,
		AirplaneID:       req.AirplaneID,
		OriginAirport:    req.OriginAirport,
		DestAirport:      req.DestAirport,
		DepartureTime:    req.DepartureTime,
		ArrivalTime:      req.ArrivalTime,
		Terminal:         req.Terminal,
		Gate:             req.Gate,
		BaggageAllowance: req.BaggageAllowance,
		Classes:          classes,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := toFlightResponse(details.Flight)
	for _, cl := range details.Classes {
		resp.Classes = append(resp.Classes, toClassResponse(cl))
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *FlightHandler) list(c *gin.Context) {
	list, err := h.service.ListFlights(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]flightResponse, 0, len(list))
	for _, f := range list {
		resp = append(resp, toFlightResponse(f))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FlightHandler) get(c *gin.Context) {
	flight, err := h.service.GetFlight(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFlightResponse(*flight))
}

func (h *FlightHandler) update(c *gin.Context) {
	var req updateFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	flight, err := h.service.UpdateFlight(c.Request.Context(), c.Param("id"), flights.UpdateFlightInput{
		DepartureTime:    req.DepartureTime,
		ArrivalTime:      req.ArrivalTime,
		Terminal:         req.Terminal,
		Gate:             req.Gate,
		BaggageAllowance: req.BaggageAllowance,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFlightResponse(*flight))
}

func (h *FlightHandler) cancel(c *gin.Context) {
	flight, err := h.service.CancelFlight(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFlightResponse(*flight))
}

func (h *FlightHandler) listClasses(c *gin.Context) {
	classes, err := h.service.ListClasses(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]classResponse, 0, len(classes))
	for _, cl := range classes {
		resp = append(resp, toClassResponse(cl))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FlightHandler) resizeClass(c *gin.Context) {
	classID, err := strconv.ParseInt(c.Param("classId"), 10, 64)
	if err != nil {
		badRequest(c, "invalid class id")
		return
	}
	var req resizeClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	class, err := h.service.ResizeClass(c.Request.Context(), c.Param("id"), classID, req.SeatCapacity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClassResponse(*class))
}

func (h *FlightHandler) listSeats(c *gin.Context) {
	classID, err := strconv.ParseInt(c.Param("classId"), 10, 64)
	if err != nil {
		badRequest(c, "invalid class id")
		return
	}
	seats, err := h.service.ListSeats(c.Request.Context(), classID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]seatResponse, 0, len(seats))
	for _, s := range seats {
		resp = append(resp, seatResponse{ID: s.ID, ClassFlightID: s.ClassFlightID, SeatCode: s.SeatCode, IsBooked: s.IsBooked})
	}
	c.JSON(http.StatusOK, resp)
}

func toFlightResponse(f domain.Flight) flightResponse {
	return flightResponse{
		ID:               f.ID,
		AirlineCode:      f.AirlineCode,
		AirplaneID:       f.AirplaneID,
		OriginAirport:    f.OriginAirport,
		DestAirport:      f.DestAirport,
		DepartureTime:    f.DepartureTime.Format(time.RFC3339),
		ArrivalTime:      f.ArrivalTime.Format(time.RFC3339),
		Terminal:         f.Terminal,
		Gate:             f.Gate,
		BaggageAllowance: f.BaggageAllowance,
		Status:           f.Status.String(),
	}
}

func toClassResponse(cl domain.ClassFlight) classResponse {
	return classResponse{
		ID:             cl.ID,
		FlightID:       cl.FlightID,
		ClassType:      string(cl.ClassType),
		SeatCapacity:   cl.SeatCapacity,
		AvailableSeats: cl.AvailableSeats,
		PriceCents:     cl.PriceCents,
	}
}
