// Package agenterr defines the sentinel error kinds used across the
// collection agent, per the error taxonomy in the architecture
// specification. Callers wrap a sentinel with fmt.Errorf("...: %w", Err...)
// and test for it with errors.Is.
package agenterr

import "errors"

var (
	// ErrConfig marks invalid or missing configuration. Fatal at startup.
	ErrConfig = errors.New("config error")

	// ErrInit marks a strategy that failed to initialize (bind refused, bad
	// credentials). Fatal for that collector only; the manager continues.
	ErrInit = errors.New("initialization error")

	// ErrCollect marks a single target's collect failure. Retried per policy,
	// then surfaced as a per-target error.
	ErrCollect = errors.New("collect error")

	// ErrTimeout marks a per-attempt deadline expiry. Always retryable.
	ErrTimeout = errors.New("timeout error")

	// ErrParse marks a malformed protocol frame. Logged at debug; the
	// offending frame is dropped.
	ErrParse = errors.New("parse error")

	// ErrPublish marks an MQTT publish failure. Triggers the local-emit
	// fallback; never aborts a poll cycle.
	ErrPublish = errors.New("publish error")

	// ErrBufferOverflow marks a bounded internal queue that exceeded its
	// capacity. The oldest entries are dropped; never fatal.
	ErrBufferOverflow = errors.New("buffer overflow")
)
