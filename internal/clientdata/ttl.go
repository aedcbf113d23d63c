package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	TTLExchangeRate = time.Hour        // 1 hour - Currency exchange rates
	TTLCurrentPrice = 10 * time.Minute // 10 minutes - Quotes reused between refreshes
)
