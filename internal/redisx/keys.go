package redisx

import "time"

const (
	// Idempotent order creation: idem:order:create:{user_id}:{idempotency_key} -> order_id (or pending marker)
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// Event dedup per consumer: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLPending     = 30 * time.Second
	TTLDedup       = 48 * time.Hour
)
