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

// Package failure defines the error taxonomy of a backup run.
//
// Every error that crosses a component boundary is a *Error carrying a Kind,
// so the run coordinator can tell a primary failure from a cleanup failure
// without string matching.
package failure

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// 🏷️ Kind classifies a failure
type Kind int

const (
	KindUnknown       Kind = iota
	KindConfiguration      // missing/invalid key or unresolvable remote type
	KindPrecondition       // local state required by a step is absent
	KindProvision          // copy engine rejected a remote registry call
	KindMount              // mount command failed
	KindUnmount            // umount command failed
	KindTransfer           // copy engine failed during the copy
	KindLogShip            // shipping the run log to the remote failed
)

// String returns the taxonomy name of the kind
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindPrecondition:
		return "PreconditionError"
	case KindProvision:
		return "ProvisionError"
	case KindMount:
		return "MountError"
	case KindUnmount:
		return "UnmountError"
	case KindTransfer:
		return "TransferError"
	case KindLogShip:
		return "LogShipError"
	default:
		return "UnknownError"
	}
}

// NoExitCode marks a failure that did not come from an external command.
const NoExitCode = -1

// 💥 Error is a classified failure
type Error struct {
	Kind     Kind   // taxonomy bucket
	Op       string // what was being attempted, e.g. "mount /dev/sdb1 on /mnt/x"
	ExitCode int    // exit status of the external command, NoExitCode otherwise
	Err      error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.ExitCode != NoExitCode {
		msg += fmt.Sprintf(" (exit status %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: KindMount}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func newError(kind Kind, op string, code int, cause error) error {
	return errors.WithStack(&Error{Kind: kind, Op: op, ExitCode: code, Err: cause})
}

// 🔧 Configuration builds a ConfigurationError
func Configuration(op string, cause error) error {
	return newError(KindConfiguration, op, NoExitCode, cause)
}

// Configurationf builds a ConfigurationError with a formatted cause.
func Configurationf(op string, format string, args ...any) error {
	return newError(KindConfiguration, op, NoExitCode, errors.Errorf(format, args...))
}

// 🚧 Precondition builds a PreconditionError
func Precondition(op string, cause error) error {
	return newError(KindPrecondition, op, NoExitCode, cause)
}

// 🛰️ Provision builds a ProvisionError
func Provision(op string, cause error) error {
	return newError(KindProvision, op, NoExitCode, cause)
}

// 💾 Mount builds a MountError
func Mount(op string, code int, cause error) error {
	return newError(KindMount, op, code, cause)
}

// ⏏️ Unmount builds an UnmountError
func Unmount(op string, code int, cause error) error {
	return newError(KindUnmount, op, code, cause)
}

// 📦 Transfer builds a TransferError
func Transfer(op string, cause error) error {
	return newError(KindTransfer, op, NoExitCode, cause)
}

// 📨 LogShip builds a LogShipError
func LogShip(op string, cause error) error {
	return newError(KindLogShip, op, NoExitCode, cause)
}

// 🔍 As extracts the classified failure from an error chain
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	if fe, ok := As(err); ok {
		return fe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries a failure of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCodeOf returns the external exit status recorded on err, or NoExitCode.
func ExitCodeOf(err error) int {
	if fe, ok := As(err); ok {
		return fe.ExitCode
	}
	return NoExitCode
}
