package redisx

import "time"

const (
	// イベント処理の重複排除: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLDedup = 48 * time.Hour
)
