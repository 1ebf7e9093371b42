package metrics

import "time"

// Renewal outcomes.
const (
	RenewalSuccess = "success"
	RenewalFailure = "failure"
	// RenewalShared means the caller waited on a renewal started by another request.
	RenewalShared = "shared"
	// RenewalSkipped means the token had already been rotated since the request was sent.
	RenewalSkipped = "skipped"
)

type ClientObserver interface {
	ObserveRequest(method string, status int, duration time.Duration)
	RecordRenewal(outcome string)
	RecordReplay()
}

type SessionObserver interface {
	SetAuthenticated(authenticated bool)
	IncSubscribers()
	DecSubscribers()
}

type nopObserver struct{}

// Nop discards everything. It satisfies both observer interfaces.
var Nop nopObserver

func (nopObserver) ObserveRequest(string, int, time.Duration) {}
func (nopObserver) RecordRenewal(string)                      {}
func (nopObserver) RecordReplay()                             {}
func (nopObserver) SetAuthenticated(bool)                     {}
func (nopObserver) IncSubscribers()                           {}
func (nopObserver) DecSubscribers()                           {}
