// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package run

import (
	"github.com/walteh/backuprc/pkg/provision"
	"github.com/walteh/backuprc/pkg/transfer"
)

// 🏁 Status is the overall verdict of a run
type Status int

const (
	StatusSucceeded Status = iota
	StatusSucceededWithCleanupErrors
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusSucceededWithCleanupErrors:
		return "succeeded_with_cleanup_errors"
	default:
		return "failed"
	}
}

// 📋 Outcome records everything a run did and what went wrong
//
// Primary holds the first failure of the main flow and is never replaced.
// Cleanup holds failures from unmounting and log shipping, in order.
type Outcome struct {
	Primary  error
	Cleanup  []error
	States   []State
	Transfer *transfer.Result
	Remote   *provision.RemoteHandle
	LogFile  string // run log that was shipped, empty when none
	Status   Status
}

// Err returns the primary failure.
func (o *Outcome) Err() error {
	return o.Primary
}

// Failed reports whether the backup itself failed.
func (o *Outcome) Failed() bool {
	return o.Primary != nil
}

// CleanupFailed reports whether any cleanup step failed.
func (o *Outcome) CleanupFailed() bool {
	return len(o.Cleanup) > 0
}

// Reached reports whether the run entered state s.
func (o *Outcome) Reached(s State) bool {
	for _, v := range o.States {
		if v == s {
			return true
		}
	}
	return false
}

func (o *Outcome) fail(err error) {
	if o.Primary == nil {
		o.Primary = err
	}
}

func (o *Outcome) cleanupFailed(err error) {
	o.Cleanup = append(o.Cleanup, err)
}

func (o *Outcome) settle() {
	switch {
	case o.Failed():
		o.Status = StatusFailed
	case o.CleanupFailed():
		o.Status = StatusSucceededWithCleanupErrors
	default:
		o.Status = StatusSucceeded
	}
}
