package domain

import "time"

// Trip represents one scheduled, priced, seat-bearing departure between two
// cities. SeatsAvailable is the per-trip ledger: it is only ever mutated
// through the repository's atomic TryReserve/Release operations.
type Trip struct {
	ID              string
	OriginCity      string
	DestinationCity string
	DepartureDate   string // YYYY-MM-DD
	DepartureTime   string // HH:MM, 24h
	CompanyID       string
	CompanyName     string
	VehicleClass    string
	PricePerSeat    float64
	TotalCapacity   int
	SeatsAvailable  int
	CreatedAt       time.Time
}

// TripSnapshot is an immutable copy of trip details embedded in a booking at
// creation time. It decouples booking history from later edits or deletion of
// the trip record.
type TripSnapshot struct {
	TripID          string  `json:"trip_id"`
	OriginCity      string  `json:"origin_city"`
	DestinationCity string  `json:"destination_city"`
	DepartureDate   string  `json:"departure_date"`
	DepartureTime   string  `json:"departure_time"`
	CompanyID       string  `json:"company_id"`
	CompanyName     string  `json:"company_name"`
	VehicleClass    string  `json:"vehicle_class"`
	PricePerSeat    float64 `json:"price_per_seat"`
}

// Snapshot captures the trip's bookable details.
func (t *Trip) Snapshot() TripSnapshot {
	return TripSnapshot{
		TripID:          t.ID,
		OriginCity:      t.OriginCity,
		DestinationCity: t.DestinationCity,
		DepartureDate:   t.DepartureDate,
		DepartureTime:   t.DepartureTime,
		CompanyID:       t.CompanyID,
		CompanyName:     t.CompanyName,
		VehicleClass:    t.VehicleClass,
		PricePerSeat:    t.PricePerSeat,
	}
}
