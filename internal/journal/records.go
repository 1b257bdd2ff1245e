package journal

// DispatchRecord is one dispatched action.
type DispatchRecord struct {
	ID         string `json:"id"`
	Seq        int64  `json:"seq"`
	JournalSeq int64  `json:"journal_seq"`
	ActionType string `json:"action_type"`

	// Payload is the action's JSON encoding: canonical for ir.Action,
	// encoding/json output for other actions, "null" when unencodable.
	Payload       string `json:"payload"`
	PayloadDigest string `json:"payload_digest,omitempty"`
}

// RunRecord is one finished asynchronous saga run.
type RunRecord struct {
	ID          int64  `json:"id"`
	DispatchID  string `json:"dispatch_id"`
	Saga        string `json:"saga"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
	StartedSeq  int64  `json:"started_seq"`
	FinishedSeq int64  `json:"finished_seq"`
}

// Stats summarizes a journal.
type Stats struct {
	Dispatches int64            `json:"dispatches"`
	Runs       int64            `json:"runs"`
	Outcomes   map[string]int64 `json:"outcomes"`
	Sagas      map[string]int64 `json:"sagas"`
}
