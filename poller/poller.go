package poller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/distributedlearning/go-task-client/client"
)

// Time period between task status checks.
var defaultInterval = 5 * time.Second

// Poller waits for the results of a submitted task.
type Poller struct {
	Client client.Client

	// Interval is the period between status checks.
	Interval time.Duration

	// Deadline bounds the total wait. Zero waits forever,
	// so a task whose completion flag never becomes true
	// is polled indefinitely.
	Deadline time.Duration
}

// New returns a Poller with the default check interval.
func New(c client.Client) *Poller {
	return &Poller{
		Client:   c,
		Interval: defaultInterval,
	}
}

// WaitForResults polls the task status until the server reports
// it complete, then fetches the results exactly once. Each result
// entry is decoded independently from its JSON string encoding;
// the returned slice preserves the server order.
func (p *Poller) WaitForResults(ctx context.Context, id int) ([]json.RawMessage, error) {
	if p.Deadline > 0 {
		var cancelFn context.CancelFunc
		ctx, cancelFn = context.WithTimeout(ctx, p.Deadline)
		defer cancelFn()
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(p.interval()), ctx)
	pollTimer := time.NewTimer(p.interval())
	defer pollTimer.Stop()

	for {
		status, err := p.Client.GetTask(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "could not query task status")
		}
		if status.Complete {
			break
		}

		logrus.WithField("task_id", id).Debug("task pending")

		duration := b.NextBackOff()
		if duration == backoff.Stop {
			return nil, ctx.Err()
		}
		// drain a stale fire left by a status check that
		// outlasted the interval, so Reset waits in full.
		if !pollTimer.Stop() {
			select {
			case <-pollTimer.C:
			default:
			}
		}
		pollTimer.Reset(duration)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-pollTimer.C:
		}
	}

	status, err := p.Client.GetTaskResults(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch task results")
	}

	results := make([]json.RawMessage, len(status.Results))
	for i, envelope := range status.Results {
		var v json.RawMessage
		if err := json.Unmarshal([]byte(envelope.Result), &v); err != nil {
			return nil, errors.Wrapf(err, "could not decode result %d", i)
		}
		results[i] = v
	}
	return results, nil
}

func (p *Poller) interval() time.Duration {
	if p.Interval > 0 {
		return p.Interval
	}
	return defaultInterval
}
