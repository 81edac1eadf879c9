// Package errs collects the error taxonomy of spec §7: routing failures,
// dispatch errors, migration failures, shutdown behavior, and fatal
// conditions. Sentinels cover fixed states; constructors cover errors
// that carry data, wrapping an underlying cause with
// github.com/pkg/errors when one is available.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// ========== scheduler / actor lifecycle ==========

var (
	// ErrSchedulerShuttingDown is returned by Spawn once shutdown has begun.
	ErrSchedulerShuttingDown = errors.New("scheduler is shutting down")
	// ErrActorNotFound describes a box with no resident actor and no
	// forwarding entry. The scheduler does not return it; such messages
	// are bounced as RecipientMoved instead.
	ErrActorNotFound = errors.New("actor not found")
	// ErrTaskIsNil describes a nil task callback. AfterFunc and TickFunc
	// do not check for nil and never return it.
	ErrTaskIsNil = errors.New("task is nil")
)

// ========== routing ==========
//
// HostService.RemoteRoutes reports every routing failure as a false
// result; it does not return these errors. They name the failure cases.

var (
	// ErrNoPeer: the target's PostCode names no known peer.
	ErrNoPeer = errors.New("no peer host service for target postcode")
	// ErrCrossHost: the target's PostCode names a different process and
	// no Transport plugin is configured to bridge it.
	ErrCrossHost = errors.New("target postcode is on another host; no transport plugin configured")
	// ErrInboundFull: the destination's inbound queue is bounded and
	// already at capacity.
	ErrInboundFull = errors.New("peer inbound queue is full")
)

// ========== migration ==========

var (
	// ErrMigrationAborted is logged by the scheduler when the destination's
	// inbound queue rejects the migration; the actor is reinserted on the
	// source.
	ErrMigrationAborted = errors.New("migration aborted, actor reinserted on source scheduler")
	// ErrNoAlternative is returned by Context.MigrateToNearest when it is
	// given no alternatives.
	ErrNoAlternative = errors.New("no migration alternative closer than current scheduler")
)

// ErrDispatchFailed wraps an error returned by user OnMessage code (a
// panic is recovered and logged separately, without this wrapper). The
// scheduler logs it and continues; the actor stays resident.
func ErrDispatchFailed(box uint64, cause error) error {
	return errors.Wrapf(cause, "dispatch failed for box %d", box)
}

// ========== fatal / debug ==========

// ErrPluginMisconfigured reports a fatal plugin wiring mistake (e.g. no
// plugin's SpawnPos ever returns true). Host startup does not perform
// such a check and never returns it.
func ErrPluginMisconfigured(reason string) error {
	return fmt.Errorf("plugin misconfigured: %s", reason)
}

// ErrLockCycle reports a detected violation of the single-peer-lock rule
// (spec §5), raised only by the debug lock guard.
func ErrLockCycle(holder, attempted string) error {
	return fmt.Errorf("lock cycle detected: already holding %s, attempted %s", holder, attempted)
}

// ========== component lifecycle (pkg/component) ==========

func ErrComponentCannotBeNil() error {
	return fmt.Errorf("component cannot be nil")
}

func ErrComponentNameCannotBeEmpty() error {
	return fmt.Errorf("component name cannot be empty")
}

func ErrCannotRegisterComponentAfterStarted() error {
	return fmt.Errorf("cannot register component after manager has started")
}

func ErrComponentAlreadyRegistered(name string) error {
	return fmt.Errorf("component with name '%s' already registered", name)
}

func ErrManagerAlreadyStarted() error {
	return fmt.Errorf("manager has already been started")
}

func ErrManagerStoppedCannotRestart() error {
	return fmt.Errorf("manager has been stopped and cannot be restarted")
}

func ErrFailedToStartComponent(name string, err error) error {
	return errors.Wrapf(err, "failed to start component %q", name)
}

// ========== config ==========

func ErrReadConfigFileFailed(err error) error {
	return errors.Wrap(err, "read config file failed")
}

func ErrUnmarshalConfigFailed(err error) error {
	return errors.Wrap(err, "unmarshal config failed")
}

// ========== codec ==========

func ErrInvalidCodecMessageType() error {
	return fmt.Errorf("invalid message type for codec")
}
