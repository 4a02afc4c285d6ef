// Package interfaces defines the core interfaces and types shared by the
// provisioning components. It provides the contract between packages without
// implementation details.
package interfaces

import (
	"fmt"
	"os"
	"time"
)

// FileSpec describes a managed filesystem artifact: where it lives and the
// ownership and permission bits it must carry.
type FileSpec struct {
	Path  string
	Owner string
	Group string
	Mode  os.FileMode
}

func (s FileSpec) String() string {
	return fmt.Sprintf("%s (%s:%s %#o)", s.Path, s.Owner, s.Group, s.Mode)
}

// WriteResult is the outcome of a guarded write.
type WriteResult int

const (
	// Skipped means the guard fired and the file content was left untouched.
	Skipped WriteResult = iota
	// Created means new content was written.
	Created
	// Failed means the write was attempted and did not complete.
	Failed
)

// String returns result name.
func (r WriteResult) String() string {
	switch r {
	case Skipped:
		return "skipped"
	case Created:
		return "created"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets results appear by name in JSON reports.
func (r WriteResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// FileResult records what happened to a single managed file.
type FileResult struct {
	Path   string      `json:"path"`
	Result WriteResult `json:"result"`
	Error  string      `json:"error,omitempty"`
}

// PhaseResult records one step of a provisioning run.
type PhaseResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// RunReport summarizes a provisioning run.
type RunReport struct {
	RunID       string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Phases      []PhaseResult `json:"phases"`
	Credentials []FileResult  `json:"credentials"`
}

// CreatedFiles returns the credential files written during the run.
func (r *RunReport) CreatedFiles() []string {
	var paths []string
	for _, res := range r.Credentials {
		if res.Result == Created {
			paths = append(paths, res.Path)
		}
	}
	return paths
}
