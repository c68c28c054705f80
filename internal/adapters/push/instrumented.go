package push

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pralapin/school-service/internal/core/ports"
)

// Instrumented counts batches and per-token outcomes of the wrapped sender.
type Instrumented struct {
	next     ports.PushSender
	name     string
	batches  *prometheus.CounterVec
	messages *prometheus.CounterVec
}

var _ ports.PushSender = (*Instrumented)(nil)

func NewInstrumented(next ports.PushSender, name string, batches, messages *prometheus.CounterVec) *Instrumented {
	return &Instrumented{next: next, name: name, batches: batches, messages: messages}
}

func (i *Instrumented) Send(ctx context.Context, msg ports.PushMessage) (ports.BatchResult, error) {
	res, err := i.next.Send(ctx, msg)
	status := "ok"
	if err != nil {
		status = "error"
	}
	i.batches.WithLabelValues(i.name, status).Inc()
	i.messages.WithLabelValues(i.name, "success").Add(float64(res.SuccessCount))
	i.messages.WithLabelValues(i.name, "failure").Add(float64(res.FailureCount))
	return res, err
}
