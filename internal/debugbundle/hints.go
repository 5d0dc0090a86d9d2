package debugbundle

import "github.com/quillhq/skillpilot/internal/protocol"

// nextActions maps each error_type to three to five remediation hints,
// covering the full taxonomy in protocol.ErrorType.
var nextActions = map[protocol.ErrorType][]string{
	protocol.ErrorLocatorFail: {
		"confirm the design query matches a file under the working directory",
		"pass an explicit path (containing / or ending in .enc) to skip the scan",
		"check that both the .enc file and its companion .enc.dat exist",
	},
	protocol.ErrorContractInvalid: {
		"ensure required_outputs is non-empty and every path starts with reports/",
		"remove any .. segments or absolute paths from required_outputs",
		"add at least two debug_hints to the contract",
	},
	protocol.ErrorSessionStartFail: {
		"check that the tool binary in the launch argv exists and is executable",
		"inspect session/supervisor.log for the PTY spawn error",
		"verify the working directory passed to the launch spec exists",
		"retry with a longer session-ready timeout if the tool is slow to boot",
	},
	protocol.ErrorToolCrash: {
		"inspect log/session.out for the tool's last output before it died",
		"check the tool's own crash log or core dump, if any",
		"verify boot commands did not put the tool into an unrecoverable state",
	},
	protocol.ErrorHeartbeatLost: {
		"check whether the runner process is still alive",
		"inspect state/heartbeat.json for the last recorded timestamp",
		"restart the session; inflight requests will be requeued automatically",
	},
	protocol.ErrorQueueTimeout: {
		"inspect state/state.json for the phase the runner was stuck in",
		"check whether the ack-wait budget is too tight for this request's payload",
		"verify the runner's main loop did not stall on a control-plane write",
	},
	protocol.ErrorRestoreFail: {
		"confirm the design_data path resolved by the locator is readable",
		"inspect the restore request's result message for the tool's own error text",
		"check the ack result file under result/ for the exact failure payload",
	},
	protocol.ErrorCmdFail: {
		"inspect output/ for the request's raw stdout capture",
		"check the result message field for the underlying I/O error",
		"verify the payload is valid for the tool's command dialect",
	},
	protocol.ErrorOutputMissing: {
		"inspect reports_inventory.json for what was actually produced",
		"check the skill's steps actually write to the declared reports/ path",
		"verify the glob pattern in the contract matches the produced filename",
	},
	protocol.ErrorOutputEmpty: {
		"inspect reports_inventory.json for the zero-byte file's size/mtime",
		"check whether the producing step failed silently before writing content",
		"re-run the skill with a fresh run-dir and compare reports/ output",
	},
}

// NextActions returns the remediation hints for errType, falling back
// to a generic hint for values outside the closed taxonomy.
func NextActions(errType protocol.ErrorType) []string {
	if hints, ok := nextActions[errType]; ok {
		return append([]string(nil), hints...)
	}
	return []string{"inspect job_timeline.jsonl for the sequence of events leading to failure"}
}
