package pipeline

import (
	"fmt"
	"time"

	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// RunCollect starts src and moves its events onto q until src closes its
// channel. Events that cannot be queued under the policy are counted as
// dropped.
func RunCollect(src ports.Source, q ports.EventQueue, pol ports.Policy, obs ports.Observability) error {
	ch := make(chan *domain.Event, pol.MaxQueueLen)

	if err := src.Start(ch); err != nil {
		return err
	}

	go func() {
		for ev := range ch {
			if !enqueueWithPolicy(q, ev, pol, obs) {
				obs.IncCounter(ports.MetricQueueDropped, 1)
			}
		}
	}()

	return nil
}

func enqueueWithPolicy(q ports.EventQueue, ev *domain.Event, pol ports.Policy, obs ports.Observability) bool {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		if ok := q.Enqueue(ev); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			time.Sleep(sleep)
		case "drop", "reject":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen))
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}
