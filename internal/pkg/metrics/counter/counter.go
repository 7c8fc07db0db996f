package counter

import (
	"context"
	"strconv"

	"github.com/applitrack/AppliTrack/internal/pkg/cache"
)

const deliveriesKey = "webhook:counters:deliveries"

// AddDelivery increments the delivery counter for a source/outcome
// pair in Redis. Callers treat failures as best effort; the counters
// are operational telemetry, not state.
func AddDelivery(source, outcome string) error {
	ctx := context.Background()
	field := source + ":" + outcome
	return cache.GetClient().HIncrBy(ctx, deliveriesKey, field, 1).Err()
}

// Snapshot returns the accumulated delivery counts keyed by
// "source:outcome".
func Snapshot() (map[string]int64, error) {
	ctx := context.Background()
	data, err := cache.GetClient().HGetAll(ctx, deliveriesKey).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(data))
	for field, v := range data {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		out[field] = n
	}
	return out, nil
}

// Reset clears the delivery counters.
func Reset() error {
	ctx := context.Background()
	return cache.GetClient().Del(ctx, deliveriesKey).Err()
}
