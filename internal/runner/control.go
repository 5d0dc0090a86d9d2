package runner

import (
	"github.com/quillhq/skillpilot/internal/diskio"
	"github.com/quillhq/skillpilot/internal/protocol"
)

// pollControl reads the three control files that can interrupt an
// in-flight request or the idle loop: cancel.json, stop.json and
// state/lease.json. Cancel and stop are one-shot and NOT consumed here —
// callers that act on them are responsible for deleting the file, since
// only the component that actually honors the signal should consume it.
func (r *Runner) pollControl() (cancel *protocol.CancelSignal, stop *protocol.StopSignal, lease *protocol.Lease) {
	var c protocol.CancelSignal
	if found, err := diskio.ReadJSON(r.layout.cancelPath(), &c); err != nil {
		r.log.Warn("read cancel.json", "error", err)
	} else if found {
		cancel = &c
	}

	var s protocol.StopSignal
	if found, err := diskio.ReadJSON(r.layout.stopPath(), &s); err != nil {
		r.log.Warn("read stop.json", "error", err)
	} else if found {
		stop = &s
	}

	var l protocol.Lease
	if found, err := diskio.ReadJSON(r.layout.leasePath(), &l); err != nil {
		r.log.Warn("read lease.json", "error", err)
	} else if found {
		lease = &l
	}

	return cancel, stop, lease
}

// consumeCancel deletes cancel.json: the cancel signal is one-shot and is
// removed once the Runner has acted on it.
func (r *Runner) consumeCancel() {
	if err := diskio.RemoveIfExists(r.layout.cancelPath()); err != nil {
		r.log.Warn("consume cancel.json", "error", err)
	}
}

// consumeStop deletes stop.json once the Runner has honored it.
func (r *Runner) consumeStop() {
	if err := diskio.RemoveIfExists(r.layout.stopPath()); err != nil {
		r.log.Warn("consume stop.json", "error", err)
	}
}

// cancelTargets reports whether a cancel signal applies to the request
// currently executing.
func cancelTargets(c *protocol.CancelSignal, currentRequestID string) bool {
	if c == nil {
		return false
	}
	switch c.Scope {
	case protocol.CancelScopeCurrent:
		return true
	case protocol.CancelScopeByID:
		return c.RequestID == currentRequestID
	default:
		return false
	}
}
