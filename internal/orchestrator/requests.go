package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/quillhq/skillpilot/internal/diskio"
	"github.com/quillhq/skillpilot/internal/protocol"
)

// ackPollQuantum matches the Runner's own poll quantum so an Orchestrator
// blocked on an ack never waits materially longer than the Runner needed
// to actually produce it.
const ackPollQuantum = 100 * time.Millisecond

// submitAndAwait writes one Request into queue/ and blocks until its
// result file appears in result/ or the configured ack-wait budget is
// exhausted. This is the Orchestrator's only suspension point besides
// session/ready polling.
func (o *Orchestrator) submitAndAwait(ctx context.Context, step Step) (*protocol.Result, error) {
	if o.cfg.EnableLease {
		if err := o.grantLease(); err != nil {
			return nil, err
		}
	}
	o.seq++
	req := protocol.NewRequest(ulid.Make().String(), o.jobID, o.seq, step.CompilePayload())
	if step.TimeoutS > 0 {
		req.TimeoutS = step.TimeoutS
	}

	queuePath := joinRunDir(o.cfg.RunDir, "queue", req.QueueFilename())
	if _, err := diskio.WriteAtomicJSON(queuePath, req); err != nil {
		return nil, fmt.Errorf("orchestrator: write request %s: %w", req.RequestID, err)
	}
	o.action("submit", map[string]any{"request_id": req.RequestID, "seq": req.Seq, "payload": req.Payload})

	resultPath := joinRunDir(o.cfg.RunDir, "result", protocol.ResultFilename(req.Seq, req.RequestID))
	budget := o.cfg.AckTimeout
	if step.TimeoutS > 0 {
		// Give the ack-wait budget headroom over the request's own
		// timeout so a TIMEOUT/CANCELLED result (which the Runner still
		// always writes) has time to land before the Orchestrator gives
		// up waiting for it.
		budget = time.Duration(step.TimeoutS)*time.Second + 30*time.Second
	}
	deadline := time.Now().Add(budget)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("orchestrator: await ack %s: %w", req.RequestID, ctx.Err())
		default:
		}
		var res protocol.Result
		found, err := diskio.ReadJSON(resultPath, &res)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: read result %s: %w", req.RequestID, err)
		}
		if found {
			o.action("ack", map[string]any{"request_id": req.RequestID, "status": res.Status, "error_type": res.ErrorType})
			o.lastAck = &res
			return &res, nil
		}
		time.Sleep(ackPollQuantum)
	}
	return nil, fmt.Errorf("orchestrator: no ack for %s within %s", req.RequestID, budget)
}
