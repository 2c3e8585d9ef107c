package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"busline/internal/cache"
	"busline/internal/domain"
	"busline/internal/repository"
)

// TripService serves the read-heavy trip search traffic through the cache
// facade. Read paths never mutate the ledger.
type TripService struct {
	tripRepo repository.TripRepository
	cache    *cache.Facade
}

// NewTripService creates a new TripService.
func NewTripService(tripRepo repository.TripRepository, cacheFacade *cache.Facade) *TripService {
	return &TripService{tripRepo: tripRepo, cache: cacheFacade}
}

// Search retrieves trips matching the filters, read-through cached under a
// key derived from the filter parameters. Filter-less pages use the listing
// namespace so they stay inspectable by key.
func (s *TripService) Search(ctx context.Context, q repository.TripSearch) ([]*domain.Trip, error) {
	key := cache.SearchKey(q.OriginCity, q.DestinationCity, q.DepartureDate, q.CompanyID, q.Limit, q.Offset)
	if q.OriginCity == "" && q.DestinationCity == "" && q.DepartureDate == "" && q.CompanyID == "" {
		key = cache.ListKey(q.Limit, q.Offset)
	}

	var trips []*domain.Trip
	if s.lookup(ctx, key, &trips) {
		return trips, nil
	}

	trips, err := s.tripRepo.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	s.store(ctx, key, trips, cache.SearchTTL)
	return trips, nil
}

// GetTrip retrieves a single trip, read-through cached under its detail key.
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	key := cache.TripKey(tripID)

	var trip *domain.Trip
	if s.lookup(ctx, key, &trip) && trip != nil {
		return trip, nil
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	s.store(ctx, key, trip, cache.TripDetailTTL)
	return trip, nil
}

// lookup reads and decodes a cached payload. Cache trouble is logged, never
// surfaced: a failed lookup is just a miss.
func (s *TripService) lookup(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	data, degraded, err := s.cache.Get(ctx, key)
	if err != nil {
		return false
	}
	if degraded {
		log.Printf("[TRIPS] key=%s served from degraded cache tier", key)
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("[TRIPS] key=%s corrupt cache payload: %v", key, err)
		return false
	}
	return true
}

func (s *TripService) store(ctx context.Context, key string, value any, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("[TRIPS] key=%s marshal cache payload: %v", key, err)
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		log.Printf("[TRIPS] key=%s cache populate failed on all tiers: %v", key, err)
	}
}
