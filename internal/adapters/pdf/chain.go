package pdf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// NamedRenderer is a renderer that can be reported on.
type NamedRenderer interface {
	ports.ReceiptRenderer
	Name() string
}

// Chain tries each renderer in order and returns the first success. When all
// of them fail it returns nil bytes and a nil error; the caller decides.
type Chain struct {
	renderers []NamedRenderer
	counter   *prometheus.CounterVec
	logger    *logrus.Logger
}

var _ ports.ReceiptRenderer = (*Chain)(nil)

// NewChain builds a chain. counter may be nil.
func NewChain(logger *logrus.Logger, counter *prometheus.CounterVec, renderers ...NamedRenderer) *Chain {
	return &Chain{renderers: renderers, counter: counter, logger: logger}
}

// DefaultChain is fpdf with the hand-written fallback.
func DefaultChain(logger *logrus.Logger, counter *prometheus.CounterVec) *Chain {
	return NewChain(logger, counter, FPDF{}, Plain{})
}

func (c *Chain) Render(b *domain.Billing, rc domain.ReceiptContext) ([]byte, error) {
	for _, r := range c.renderers {
		out, err := r.Render(b, rc)
		if err == nil && len(out) > 0 {
			c.observe(r.Name(), "success")
			return out, nil
		}
		c.observe(r.Name(), "failure")
		c.logger.WithError(err).WithFields(logrus.Fields{
			"renderer":   r.Name(),
			"billing_id": b.ID,
		}).Warn("receipt renderer failed")
	}
	return nil, nil
}

func (c *Chain) observe(name, outcome string) {
	if c.counter != nil {
		c.counter.WithLabelValues(name, outcome).Inc()
	}
}
