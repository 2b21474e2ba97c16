package llm

import (
	"context"
	"time"
)

// Observer records reply generation latency and outcome.
type Observer interface {
	ObserveReply(backend string, elapsed time.Duration, err error)
}

type observed struct {
	next     Replier
	backend  string
	observer Observer
}

// Observed reports every GenerateReply call on r to obs under the backend label.
func Observed(r Replier, backend string, obs Observer) Replier {
	return &observed{next: r, backend: backend, observer: obs}
}

func (o *observed) GenerateReply(ctx context.Context, userText string) (string, error) {
	start := time.Now()
	reply, err := o.next.GenerateReply(ctx, userText)
	o.observer.ObserveReply(o.backend, time.Since(start), err)
	return reply, err
}
