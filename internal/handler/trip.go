package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"busline/internal/domain"
	"busline/internal/repository"
	"busline/internal/service"
)

// TripHandler handles HTTP requests for trip search and detail reads. These
// are the read-heavy endpoints served through the cache facade.
type TripHandler struct {
	tripService *service.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// TripResponse is the HTTP representation of a trip.
type TripResponse struct {
	ID              string  `json:"id"`
	OriginCity      string  `json:"origin_city"`
	DestinationCity string  `json:"destination_city"`
	DepartureDate   string  `json:"departure_date"`
	DepartureTime   string  `json:"departure_time"`
	CompanyID       string  `json:"company_id"`
	CompanyName     string  `json:"company_name"`
	VehicleClass    string  `json:"vehicle_class"`
	PricePerSeat    float64 `json:"price_per_seat"`
	TotalCapacity   int     `json:"total_capacity"`
	SeatsAvailable  int     `json:"seats_available"`
}

func toTripResponse(t *domain.Trip) TripResponse {
	return TripResponse{
		ID:              t.ID,
		OriginCity:      t.OriginCity,
		DestinationCity: t.DestinationCity,
		DepartureDate:   t.DepartureDate,
		DepartureTime:   t.DepartureTime,
		CompanyID:       t.CompanyID,
		CompanyName:     t.CompanyName,
		VehicleClass:    t.VehicleClass,
		PricePerSeat:    t.PricePerSeat,
		TotalCapacity:   t.TotalCapacity,
		SeatsAvailable:  t.SeatsAvailable,
	}
}

// GetAll handles GET /v1/trips with optional from/to/date/company filters.
func (h *TripHandler) GetAll(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	trips, err := h.tripService.Search(c.Request.Context(), repository.TripSearch{
		OriginCity:      c.Query("from"),
		DestinationCity: c.Query("to"),
		DepartureDate:   c.Query("date"),
		CompanyID:       c.Query("company"),
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TripResponse, 0, len(trips))
	for _, t := range trips {
		response = append(response, toTripResponse(t))
	}

	respondJSON(c, http.StatusOK, response)
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(trip))
}
