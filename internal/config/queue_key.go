package config

type QueueKeyStruct struct {
	GradingQueue    string
	ExtractionQueue string
}

var QueueKey = &QueueKeyStruct{
	GradingQueue:    "grading_queue",
	ExtractionQueue: "extraction_queue",
}

// Job names routed through the queues above.
const (
	JobGradeAttempt = "grade-attempt"
	JobTestExpiry   = "test-expiry"
	JobParsePDF     = "parse-pdf"
)
