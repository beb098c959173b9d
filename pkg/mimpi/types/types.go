// Package types holds the data model shared between the public mimpi API,
// its core messaging engine and the launcher: message/tag/retcode
// definitions, the reduction operator set and the Logger contract every
// component is configured with.
package types

import "fmt"

// Retcode mirrors MPI's integer return-code convention: recoverable
// outcomes are values, not errors, so a caller can compare them directly
// against the sentinels below.
type Retcode int

const (
	SUCCESS Retcode = iota
	ErrorAttemptedSelfOp
	ErrorNoSuchRank
	ErrorRemoteFinished
	// ErrorDeadlockDetected is reserved: Init accepts the
	// enable_deadlock_detection flag but this core never produces this
	// code, per spec.
	ErrorDeadlockDetected
)

func (r Retcode) String() string {
	switch r {
	case SUCCESS:
		return "SUCCESS"
	case ErrorAttemptedSelfOp:
		return "ERROR_ATTEMPTED_SELF_OP"
	case ErrorNoSuchRank:
		return "ERROR_NO_SUCH_RANK"
	case ErrorRemoteFinished:
		return "ERROR_REMOTE_FINISHED"
	case ErrorDeadlockDetected:
		return "ERROR_DEADLOCK_DETECTED"
	default:
		return fmt.Sprintf("Retcode(%d)", int(r))
	}
}

// Tag is the 4-byte signed label carried by every wire frame. Tags >= 0 are
// user tags; tag 0 is the receive-side wildcard for "any positive tag".
// Negative tags are reserved for protocol control messages.
type Tag int32

const (
	// TagWildcard matches any strictly positive tag on the receive side.
	TagWildcard Tag = 0

	TagGroupBegin        Tag = -2
	TagGroupEnd          Tag = -3
	TagGroupFail         Tag = -8
	TagFinalizeBegin     Tag = -1984
	TagFinalizeEnd       Tag = -4891
	TagPeerLeaving       Tag = -7
	TagTerminateReceiver Tag = -1
)

// IsControl reports whether tag names one of the reserved negative control
// messages rather than a user or wildcard tag.
func (t Tag) IsControl() bool {
	return t < 0
}

// Op is one of the four built-in byte-wise reduction operators.
type Op int

const (
	OpMax Op = iota
	OpMin
	OpSum
	OpProd
)

func (o Op) String() string {
	switch o {
	case OpMax:
		return "MAX"
	case OpMin:
		return "MIN"
	case OpSum:
		return "SUM"
	case OpProd:
		return "PROD"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Logger is the logging contract threaded through every component, shaped
// after the levelled logger the messaging engine was grounded on.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})

	// ToggleDebug turns debug-level logging on or off and returns the new
	// state, so tests can quiet a noisy default logger.
	ToggleDebug(enable bool) bool
}

// WorldConfig is the configuration a World is built from: world size, self
// rank and the pipe set to every peer, plus the ambient knobs (logger,
// deadlock-detection flag) accepted by Init.
type WorldConfig struct {
	// Size is the world size N.
	Size int

	// Rank is this process's 0-based rank within the world.
	Rank int

	// EnableDeadlockDetection is accepted for API compatibility with the
	// original Init(enable_deadlock_detection) signature; this core does
	// not implement deadlock detection (see spec Open Questions).
	EnableDeadlockDetection bool

	// Logger receives every diagnostic emitted by the world. A nil Logger
	// is replaced by definition.NewDefaultLogger() by the caller.
	Logger Logger
}
