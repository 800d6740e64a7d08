package bus

import (
	"context"

	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

// Bus carries push messages between server instances.
type Bus interface {
	Publish(ctx context.Context, msg realtime.PushMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.PushMessage)) error
	Ping(ctx context.Context) error
	Close() error
}
