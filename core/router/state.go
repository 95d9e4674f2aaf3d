package router

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type Status uint8

const (
	StatusIdle Status = iota
	StatusPaused
	StatusExecuting
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPaused:
		return "paused"
	case StatusExecuting:
		return "executing"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

var (
	// IdleSentinel and PausedSentinel are how the active user is exposed
	// through currentUser() to callers that only understand addresses.
	IdleSentinel   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	PausedSentinel = common.Address{}
)

// ActiveUser is the router's single state slot. It is the pause flag and the
// reentrancy lock at once: a batch may only start from Idle, and while it runs
// the slot names the user it runs for. A pause issued while a batch runs is
// held as pending and applied when the batch ends.
type ActiveUser struct {
	status       Status
	user         common.Address
	pausePending bool
}

func Idle() ActiveUser {
	return ActiveUser{status: StatusIdle}
}

func Paused() ActiveUser {
	return ActiveUser{status: StatusPaused}
}

func Executing(user common.Address) ActiveUser {
	return ActiveUser{status: StatusExecuting, user: user}
}

// WithPausePending marks an executing slot to become Paused instead of Idle
// once its batch ends.
func (a ActiveUser) WithPausePending(pending bool) ActiveUser {
	if a.status == StatusExecuting {
		a.pausePending = pending
	}
	return a
}

func (a ActiveUser) PausePending() bool {
	return a.status == StatusExecuting && a.pausePending
}

// Settled is the state the slot takes once the running batch ends.
func (a ActiveUser) Settled() ActiveUser {
	if a.PausePending() || a.status == StatusPaused {
		return Paused()
	}
	return Idle()
}

func (a ActiveUser) Status() Status {
	return a.status
}

func (a ActiveUser) IsIdle() bool   { return a.status == StatusIdle }
func (a ActiveUser) IsPaused() bool { return a.status == StatusPaused }

// User returns the executing user, or false when no batch is running.
func (a ActiveUser) User() (common.Address, bool) {
	if a.status != StatusExecuting {
		return common.Address{}, false
	}
	return a.user, true
}

// Address encodes the slot the way currentUser() reports it.
func (a ActiveUser) Address() common.Address {
	switch a.status {
	case StatusPaused:
		return PausedSentinel
	case StatusExecuting:
		return a.user
	default:
		return IdleSentinel
	}
}

func (a ActiveUser) String() string {
	if a.status == StatusExecuting {
		if a.pausePending {
			return fmt.Sprintf("executing(%s), pause pending", a.user.Hex())
		}
		return fmt.Sprintf("executing(%s)", a.user.Hex())
	}
	return a.status.String()
}
