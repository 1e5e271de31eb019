package domain

import "time"

// BundleStatus is the lifecycle state of a submitted bundle.
type BundleStatus string

const (
	BundlePending   BundleStatus = "pending"
	BundleConfirmed BundleStatus = "confirmed"
	BundleExpired   BundleStatus = "expired"
	BundleRejected  BundleStatus = "rejected"
)

// Bundle is an ordered, atomically-included set of signed transactions plus a
// priority tip. It is immutable once submitted; retries build a new Bundle
// from fresh market data instead of resubmitting this one.
type Bundle struct {
	// ID is unique per build. Submitting the same ID twice is a no-op.
	ID       string
	Strategy StrategyKind
	Asset    string

	// Transactions are fully signed wire transactions in submission order.
	Transactions [][]byte

	TipLamports uint64
	TargetSlot  uint64
	ValidUntil  time.Time
	Attempts    int

	CreatedAt time.Time
}

// SubmissionResult reports the terminal outcome of a bundle submission.
type SubmissionResult struct {
	BundleID    string
	Status      BundleStatus
	LandedSlot  uint64
	Message     string
	SubmittedAt time.Time
	Duration    time.Duration
}

// Accepted reports whether the bundle landed.
func (r SubmissionResult) Accepted() bool {
	return r.Status == BundleConfirmed
}
