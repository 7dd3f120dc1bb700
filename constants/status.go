package constants

// RunStatus is the canonical status for rows in extraction_run.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusQueued    RunStatus = "QUEUED"     // accepted, waiting for a worker
	RunStatusRunning   RunStatus = "RUNNING"    // in progress
	RunStatusSegmented RunStatus = "SEGMENT_OK" // stage 1 completed (document chunked)
	RunStatusPassesOK  RunStatus = "PASSES_OK"  // stage 2 completed (units extracted)
	RunStatusDone      RunStatus = "DONE"       // artifacts written, manifest published
	RunStatusFailed    RunStatus = "FAILED"     // terminal failure
)
