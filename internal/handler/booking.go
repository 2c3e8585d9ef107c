package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"busline/internal/domain"
	"busline/internal/middleware"
	"busline/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	reservationService *service.ReservationService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(reservationService *service.ReservationService) *BookingHandler {
	return &BookingHandler{reservationService: reservationService}
}

// LegPayload is one leg of a booking request or response.
type LegPayload struct {
	TripID     string   `json:"trip_id"`
	SeatLabels []string `json:"seat_labels"`
}

// PassengerPayload is one ticket holder in a booking request or response.
type PassengerPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// CreateBookingRequest is the HTTP request body for creating a booking.
type CreateBookingRequest struct {
	Outbound   LegPayload         `json:"outbound"`
	Return     *LegPayload        `json:"return,omitempty"`
	Passengers []PassengerPayload `json:"passengers,omitempty"`
}

// UpdateStatusRequest is the HTTP request body for a status transition.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// LegResponse is one leg of a booking response with its snapshot.
type LegResponse struct {
	TripID     string              `json:"trip_id"`
	Snapshot   domain.TripSnapshot `json:"snapshot"`
	SeatLabels []string            `json:"seat_labels"`
}

// BookingResponse is the HTTP representation of a booking.
type BookingResponse struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	Outbound      LegResponse        `json:"outbound"`
	Return        *LegResponse       `json:"return,omitempty"`
	Passengers    []PassengerPayload `json:"passengers,omitempty"`
	SeatCount     int                `json:"seat_count"`
	TotalPrice    float64            `json:"total_price"`
	PaymentRef    string             `json:"payment_ref,omitempty"`
	TransactionID string             `json:"transaction_id,omitempty"`
	Status        string             `json:"status"`
	CreatedAt     string             `json:"created_at"`
	ExpiresAt     string             `json:"expires_at"`
	PaidAt        string             `json:"paid_at,omitempty"`
	CancelledAt   string             `json:"cancelled_at,omitempty"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func toPassengerPayloads(passengers []domain.Passenger) []PassengerPayload {
	if len(passengers) == 0 {
		return nil
	}
	out := make([]PassengerPayload, 0, len(passengers))
	for _, p := range passengers {
		out = append(out, PassengerPayload{Name: p.Name, Phone: p.Phone})
	}
	return out
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	resp := BookingResponse{
		ID:     b.ID,
		UserID: b.UserID,
		Outbound: LegResponse{
			TripID:     b.Outbound.TripID,
			Snapshot:   b.Outbound.Snapshot,
			SeatLabels: b.Outbound.SeatLabels,
		},
		Passengers:    toPassengerPayloads(b.Passengers),
		SeatCount:     b.SeatCount,
		TotalPrice:    b.TotalPrice,
		PaymentRef:    b.PaymentRef,
		TransactionID: b.TransactionID,
		Status:        string(b.Status),
		CreatedAt:     b.CreatedAt.Format(timeLayout),
		ExpiresAt:     b.ExpiresAt.Format(timeLayout),
	}
	if b.Return != nil {
		resp.Return = &LegResponse{
			TripID:     b.Return.TripID,
			Snapshot:   b.Return.Snapshot,
			SeatLabels: b.Return.SeatLabels,
		}
	}
	if !b.PaidAt.IsZero() {
		resp.PaidAt = b.PaidAt.Format(timeLayout)
	}
	if !b.CancelledAt.IsZero() {
		resp.CancelledAt = b.CancelledAt.Format(timeLayout)
	}
	return resp
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, _ := middleware.Identity(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "identity required"})
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	createReq := service.CreateBookingRequest{
		UserID: userID,
		Outbound: service.LegRequest{
			TripID:     req.Outbound.TripID,
			SeatLabels: req.Outbound.SeatLabels,
		},
	}
	if req.Return != nil {
		createReq.Return = &service.LegRequest{
			TripID:     req.Return.TripID,
			SeatLabels: req.Return.SeatLabels,
		}
	}
	for _, p := range req.Passengers {
		createReq.Passengers = append(createReq.Passengers, domain.Passenger{Name: p.Name, Phone: p.Phone})
	}

	booking, err := h.reservationService.CreateBooking(c.Request.Context(), createReq)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toBookingResponse(booking))
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userID, role := middleware.Identity(c)

	booking, err := h.reservationService.GetBooking(c.Request.Context(), c.Param("id"), userID, role)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// UpdateStatus handles PUT /v1/bookings/:id/status. Owners may only cancel;
// any other transition is admin territory.
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	userID, role := middleware.Identity(c)

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	newStatus := domain.BookingStatus(req.Status)
	if !domain.ValidStatus(newStatus) {
		respondError(c, service.ErrInvalidStatus)
		return
	}

	var (
		booking *domain.Booking
		err     error
	)
	if newStatus == domain.BookingStatusCancelled {
		booking, err = h.reservationService.CancelBooking(c.Request.Context(), service.CancelBookingRequest{
			BookingID: c.Param("id"),
			ActorID:   userID,
			ActorRole: role,
		})
	} else {
		booking, err = h.reservationService.UpdateStatus(c.Request.Context(), c.Param("id"), newStatus, role)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}
