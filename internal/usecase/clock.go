package usecase

import "time"

// 現在時刻の約束。テストでは固定時刻を注入する。
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
