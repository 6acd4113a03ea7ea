// Package orchestrator coordinates bulk backup, restore, and compare
// operations across multiple Dynatrace environments. It owns the operation
// data model and state machine; persistence and per-target execution are
// supplied by the caller through the Store and TargetExecutor interfaces.
package orchestrator

import "time"

// Kind identifies the operation performed against each target environment.
type Kind string

const (
	KindBackup  Kind = "backup"
	KindRestore Kind = "restore"
	KindCompare Kind = "compare"
)

// Valid reports whether k is a known operation kind.
func (k Kind) Valid() bool {
	switch k {
	case KindBackup, KindRestore, KindCompare:
		return true
	}
	return false
}

// Status represents the overall state of a bulk operation.
type Status string

const (
	StatusPending             Status = "pending"
	StatusRunning             Status = "running"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
)

// Terminal reports whether s is a terminal overall status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed:
		return true
	}
	return false
}

// TargetStatus represents the state of a single target within an operation.
type TargetStatus string

const (
	TargetPending   TargetStatus = "pending"
	TargetRunning   TargetStatus = "running"
	TargetSucceeded TargetStatus = "succeeded"
	TargetFailed    TargetStatus = "failed"
)

// Terminal reports whether s is a terminal per-target status.
func (s TargetStatus) Terminal() bool {
	return s == TargetSucceeded || s == TargetFailed
}

// Failure reason codes recorded in ResultDetail.Reason.
const (
	ReasonTimeout          = "timeout"
	ReasonNonzeroExit      = "nonzero_exit"
	ReasonConnectionFailed = "connection_failed"
	ReasonInternalError    = "internal_error"
	ReasonInvalidRequest   = "invalid_request"
)

// ResultDetail carries the structured outcome of one target execution.
// Which fields are set depends on the operation kind.
type ResultDetail struct {
	// Reason is a machine-readable failure code, empty on success.
	Reason string `json:"reason,omitempty"`

	// Message is a human-readable summary (stderr tail, error text).
	Message string `json:"message,omitempty"`

	// ExitCode of the external tool process, if it ran.
	ExitCode int `json:"exit_code,omitempty"`

	// BackupPath is the produced artifact directory for backup operations.
	BackupPath string `json:"backup_path,omitempty"`

	// Diff summarizes a compare operation.
	Diff *DiffSummary `json:"diff,omitempty"`
}

// DiffSummary is the identity-level comparison result between two
// environments' configuration sets.
type DiffSummary struct {
	Total      int `json:"total"`
	Common     int `json:"common"`
	OnlySource int `json:"only_in_source"`
	OnlyTarget int `json:"only_in_target"`
}

// TargetResult tracks one target's progress inside a bulk operation.
type TargetResult struct {
	TargetID   string       `json:"target_id"`
	Status     TargetStatus `json:"status"`
	Detail     ResultDetail `json:"detail"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// BulkOperation is the durable record of one user-initiated request spanning
// one or more targets. Targets and Kind are fixed at creation; Results holds
// exactly one entry per targets member for the operation's whole lifetime.
type BulkOperation struct {
	ID         string                   `json:"id"`
	Kind       Kind                     `json:"kind"`
	Targets    []string                 `json:"targets"`
	Status     Status                   `json:"status"`
	Options    map[string]string        `json:"options,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
	StartedAt  *time.Time               `json:"started_at,omitempty"`
	FinishedAt *time.Time               `json:"finished_at,omitempty"`
	Results    map[string]*TargetResult `json:"results"`
}

// NewBulkOperation builds a pending operation with one pending TargetResult
// per target. The targets slice is copied; callers must have validated it as
// non-empty and deduplicated.
func NewBulkOperation(id string, kind Kind, targets []string, options map[string]string) *BulkOperation {
	op := &BulkOperation{
		ID:        id,
		Kind:      kind,
		Targets:   append([]string(nil), targets...),
		Status:    StatusPending,
		Options:   options,
		CreatedAt: time.Now().UTC(),
		Results:   make(map[string]*TargetResult, len(targets)),
	}
	for _, t := range op.Targets {
		op.Results[t] = &TargetResult{TargetID: t, Status: TargetPending}
	}
	return op
}

// AllTerminal reports whether every target result reached a terminal status.
func (op *BulkOperation) AllTerminal() bool {
	for _, r := range op.Results {
		if !r.Status.Terminal() {
			return false
		}
	}
	return true
}

// TerminalStatus computes the overall terminal status from the multiset of
// per-target outcomes. It is a pure function of the results and must only be
// called once every target is terminal; recomputing it always yields the
// same value.
func (op *BulkOperation) TerminalStatus() Status {
	succeeded, failed := 0, 0
	for _, r := range op.Results {
		switch r.Status {
		case TargetSucceeded:
			succeeded++
		case TargetFailed:
			failed++
		}
	}
	switch {
	case failed == 0:
		return StatusCompleted
	case succeeded == 0:
		return StatusFailed
	default:
		return StatusCompletedWithErrors
	}
}

// Clone returns a deep copy so snapshots never alias store-owned state.
func (op *BulkOperation) Clone() *BulkOperation {
	out := *op
	out.Targets = append([]string(nil), op.Targets...)
	if op.Options != nil {
		out.Options = make(map[string]string, len(op.Options))
		for k, v := range op.Options {
			out.Options[k] = v
		}
	}
	out.Results = make(map[string]*TargetResult, len(op.Results))
	for k, r := range op.Results {
		rc := *r
		if r.Detail.Diff != nil {
			d := *r.Detail.Diff
			rc.Detail.Diff = &d
		}
		out.Results[k] = &rc
	}
	return &out
}

// TargetDescriptor is a resolved target environment with the connection
// parameters the external tool adapter needs. Descriptors are produced by
// the inventory resolver and are not persisted with the operation.
type TargetDescriptor struct {
	ID          string
	Name        string
	URL         string
	APIToken    string
	InsecureSSL bool
}
