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
	"strings"

	"github.com/walteh/backuprc/pkg/config"
	"github.com/walteh/backuprc/pkg/failure"
)

// 🚦 State is a step of a backup run
type State int

const (
	StateInit State = iota
	StateProvisioning
	StateMounting
	StateTransferring
	StateUnmounting
	StateShippingLogs
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateProvisioning:
		return "provisioning"
	case StateMounting:
		return "mounting"
	case StateTransferring:
		return "transferring"
	case StateUnmounting:
		return "unmounting"
	case StateShippingLogs:
		return "shipping_logs"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// 🧯 FailurePolicy decides whether a failed copy is returned from Run
type FailurePolicy int

const (
	// AbortOnTransferError returns the TransferError from Run once cleanup
	// has finished.
	AbortOnTransferError FailurePolicy = iota
	// ContinueOnTransferError records the TransferError in the outcome only.
	ContinueOnTransferError
)

func (p FailurePolicy) String() string {
	if p == ContinueOnTransferError {
		return config.OnTransferErrorContinue
	}
	return config.OnTransferErrorAbort
}

// ParseFailurePolicy resolves "abort" or "continue"; empty selects abort.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", config.OnTransferErrorAbort:
		return AbortOnTransferError, nil
	case config.OnTransferErrorContinue:
		return ContinueOnTransferError, nil
	}
	return AbortOnTransferError, failure.Configurationf("parse "+config.KeyOnTransferError, "unsupported transfer failure policy %q", s)
}

// 🧯 ProvisionFailurePolicy decides what follows a failed provisioning step
type ProvisionFailurePolicy int

const (
	// ProvisionFailureCleanup skips mounting and transfer but still walks
	// the cleanup states.
	ProvisionFailureCleanup ProvisionFailurePolicy = iota
	// ProvisionFailureAbort returns straight from provisioning.
	ProvisionFailureAbort
)

func (p ProvisionFailurePolicy) String() string {
	if p == ProvisionFailureAbort {
		return config.OnProvisionErrorAbort
	}
	return config.OnProvisionErrorCleanup
}

// ParseProvisionFailurePolicy resolves "cleanup" or "abort"; empty selects cleanup.
func ParseProvisionFailurePolicy(s string) (ProvisionFailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", config.OnProvisionErrorCleanup:
		return ProvisionFailureCleanup, nil
	case config.OnProvisionErrorAbort:
		return ProvisionFailureAbort, nil
	}
	return ProvisionFailureCleanup, failure.Configurationf("parse "+config.KeyOnProvisionError, "unsupported provision failure policy %q", s)
}
