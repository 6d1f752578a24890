package camnotify

import "time"

// Outcome classifies a finished cycle.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeCaptureFailed
	OutcomeUploadFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCaptureFailed:
		return "capture_failed"
	case OutcomeUploadFailed:
		return "upload_failed"
	default:
		return "unknown"
	}
}

// CycleResult reports one capture-then-upload attempt. Err is nil only for
// OutcomeSuccess.
type CycleResult struct {
	ID           string
	Outcome      Outcome
	Err          error
	Confirmation Confirmation
	DeviceIndex  int
	StartedAt    time.Time
	Duration     time.Duration
}

// Stats are cumulative counters over the scheduler's lifetime.
type Stats struct {
	Cycles          int
	Successes       int
	CaptureFailures int
	UploadFailures  int
	// LastResult is nil until the first cycle finishes.
	LastResult *CycleResult
}

func (s *Stats) add(res CycleResult) {
	s.Cycles++
	switch res.Outcome {
	case OutcomeSuccess:
		s.Successes++
	case OutcomeCaptureFailed:
		s.CaptureFailures++
	case OutcomeUploadFailed:
		s.UploadFailures++
	}
	last := res
	s.LastResult = &last
}

func (s Stats) clone() Stats {
	out := s
	if s.LastResult != nil {
		last := *s.LastResult
		out.LastResult = &last
	}
	return out
}
