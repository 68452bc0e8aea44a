package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// CodeSuccess is the only envelope code whose payload is trusted.
const CodeSuccess = 200

// ServiceStatus is the run state reported by the panel for a JAR service.
type ServiceStatus string

const (
	StatusRunning ServiceStatus = "running"
	StatusStopped ServiceStatus = "stopped"
)

// Valid reports whether s is one of the two known states.
func (s ServiceStatus) Valid() bool {
	return s == StatusRunning || s == StatusStopped
}

// UnmarshalJSON rejects any state other than running or stopped.
func (s *ServiceStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status := ServiceStatus(raw)
	if !status.Valid() {
		return fmt.Errorf("unknown service status %q", raw)
	}
	*s = status
	return nil
}

// ServiceItem is one row of the JAR status listing.
type ServiceItem struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	PrefixArgs      string        `json:"prefixArgs"`
	SuffixArgs      string        `json:"suffixArgs"`
	CreateTime      string        `json:"createTime"`
	DeployTime      string        `json:"deployTime"`
	Status          ServiceStatus `json:"status"`
	CurrentVersion  string        `json:"currentVersion"`
	PreviousVersion string        `json:"previousVersion"`
}

// Running is a shorthand for Status == StatusRunning.
func (s ServiceItem) Running() bool {
	return s.Status == StatusRunning
}

// Envelope is the {code, message, data} shape every panel response uses.
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    *T     `json:"data,omitempty"`
}

// OK reports whether the payload may be trusted.
func (e Envelope[T]) OK() bool {
	return e.Code == CodeSuccess
}

// StatusEntry stores one accepted status listing at a moment in time.
type StatusEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	Items     []ServiceItem `json:"items"`
}

// SameItems reports whether two listings carry identical rows in the same order.
func SameItems(a, b []ServiceItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
