package cache

import (
	"context"
	"crypto/sha1"
	"fmt"
	"strconv"
	"time"
)

// Cache TTL constants. Trip inventory changes on every booking, so the
// bounded-staleness window stays short; aggregates change rarely.
const (
	TripDetailTTL = 60 * time.Second
	SearchTTL     = 30 * time.Second
	AggregateTTL  = 5 * time.Minute
)

// Key prefixes. Every key whose payload can include a given trip lives under
// one of these namespaces, so invalidation is a handful of exact deletes
// plus prefix deletes.
const (
	tripDetailPrefix = "trips:detail:"
	searchPrefix     = "trips:search:"
	listPrefix       = "trips:list:"
	cityAggPrefix    = "trips:agg:city:"
	companyAggPrefix = "trips:agg:company:"
)

// TripKey is the cache key for a single trip's detail payload.
func TripKey(tripID string) string {
	return tripDetailPrefix + tripID
}

// SearchKey derives a deterministic key from search filter parameters.
func SearchKey(origin, destination, date, companyID string, limit, offset int) string {
	canonical := origin + "|" + destination + "|" + date + "|" + companyID +
		"|" + strconv.Itoa(limit) + "|" + strconv.Itoa(offset)
	sum := sha1.Sum([]byte(canonical))
	return fmt.Sprintf("%s%x", searchPrefix, sum[:])
}

// ListKey is the cache key for one page of the unfiltered trip listing.
func ListKey(limit, offset int) string {
	return listPrefix + strconv.Itoa(limit) + ":" + strconv.Itoa(offset)
}

// CityAggKey is the cache key for a per-city aggregate payload.
func CityAggKey(city string) string {
	return cityAggPrefix + city
}

// CompanyAggKey is the cache key for a per-company aggregate payload.
func CompanyAggKey(companyID string) string {
	return companyAggPrefix + companyID
}

// InvalidateTrip removes every cache entry whose payload could include the
// mutated trip: its detail key, all search and listing pages, and the
// aggregates for its cities and carrier. Called on every capacity change so
// clients never see seats that are no longer purchasable.
func InvalidateTrip(ctx context.Context, f *Facade, tripID, originCity, destinationCity, companyID string) error {
	err := f.Delete(ctx,
		TripKey(tripID),
		CityAggKey(originCity),
		CityAggKey(destinationCity),
		CompanyAggKey(companyID),
	)
	if prefixErr := f.DeletePrefix(ctx, searchPrefix); prefixErr != nil {
		err = prefixErr
	}
	if prefixErr := f.DeletePrefix(ctx, listPrefix); prefixErr != nil {
		err = prefixErr
	}
	return err
}
