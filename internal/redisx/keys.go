package redisx

import "time"

const (
	// Idempotent request creation: idem:request:create:{idempotency_key} -> order_id
	KeyIdemRequestCreate = "idem:request:create:%s"

	// Cached request status: request_status:{order_id} -> {"order_id":..,"status":".."}
	KeyRequestStatus = "request_status:%d"

	// Event dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemClaim   = 30 * time.Second
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
