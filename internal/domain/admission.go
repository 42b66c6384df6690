package domain

import "time"

// AdmissionStatus is the per-identity admission state inside one room.
type AdmissionStatus string

const (
	StatusUnknown   AdmissionStatus = ""
	StatusRequested AdmissionStatus = "requested"
	StatusApproved  AdmissionStatus = "approved"
	StatusRejected  AdmissionStatus = "rejected"
	StatusEvicted   AdmissionStatus = "evicted"
)

// Terminal reports whether s is a host decision (or eviction) rather than a pending state.
func (s AdmissionStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusEvicted
}

type JoinRequest struct {
	Identity    Identity  `json:"identity"`
	RequestedAt time.Time `json:"requested_at"`
}
