package push

import (
	"context"

	"github.com/pralapin/school-service/internal/core/ports"
)

// Disabled drops every message. It stands in when no push credentials are
// configured.
type Disabled struct{}

var _ ports.PushSender = Disabled{}

func (Disabled) Send(ctx context.Context, msg ports.PushMessage) (ports.BatchResult, error) {
	return ports.BatchResult{}, nil
}
