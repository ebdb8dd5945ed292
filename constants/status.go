package constants

// PageStatus is the outcome of one page in a pipeline run.
type PageStatus string

// Stable values (stored inside run reports).
const (
	PageContributed             PageStatus = "CONTRIBUTED"
	PageNoCandidates            PageStatus = "NO_CANDIDATES"
	PageSkippedInsufficientText PageStatus = "SKIPPED_INSUFFICIENT_TEXT"
	PageRecognitionFailed       PageStatus = "RECOGNITION_FAILED"
	PageParseFailed             PageStatus = "PARSE_FAILED"
	PageTimeout                 PageStatus = "TIMEOUT"
	PageCancelled               PageStatus = "CANCELLED"
)

// Failed reports whether the page hit an error rather than a normal
// outcome such as a cover page without procedures.
func (s PageStatus) Failed() bool {
	switch s {
	case PageRecognitionFailed, PageParseFailed, PageTimeout:
		return true
	}
	return false
}

// RunStatus summarizes a whole run.
type RunStatus string

const (
	RunOK           RunStatus = "OK"
	RunPartial      RunStatus = "PARTIAL"       // some pages failed, others contributed
	RunTotalFailure RunStatus = "TOTAL_FAILURE" // no page contributed
	RunCancelled    RunStatus = "CANCELLED"
)

// JobStatus is the canonical status for rows in extraction_runs.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED" // malformed document or storage error
)

// RunStatuses and JobStatuses list the values accepted by the schema.
var (
	RunStatuses = []string{string(RunOK), string(RunPartial), string(RunTotalFailure), string(RunCancelled)}
	JobStatuses = []string{string(JobStatusQueued), string(JobStatusRunning), string(JobStatusSucceeded), string(JobStatusFailed)}
)
