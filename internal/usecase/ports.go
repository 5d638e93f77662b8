package usecase

import (
	"time"

	"storefront/internal/notify"
)

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// 件数変化を流す約束（notify.Channel が実装）
type CountPublisher interface {
	Publish(ev notify.CountEvent)
}
