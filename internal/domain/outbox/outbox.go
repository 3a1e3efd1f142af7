package outbox

import "context"

// Event はアウトボックスで配送されるドメインイベント
type Event interface {
	EventName() string
}

// Handler はイベントを処理する
type Handler func(ctx context.Context, e Event) error

// Publisher はイベントを発行する
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber はイベント名ごとにハンドラを登録する
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
