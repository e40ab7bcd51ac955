package flash

import "github.com/go-logr/logr"

type config struct {
	maxAttempts int
	blockSize   int
	progress    func(Progress)
	log         logr.Logger
	confirm     func() bool
	unlock      func() error
	lock        func() error
	precheck    func() (bool, error)
	modeSwitch  func() error
}

func defaultConfig() config {
	return config{
		maxAttempts: 5,
		blockSize:   512,
		log:         logr.Discard(),
	}
}

// Option configures a Flasher.
type Option func(*config)

// WithMaxAttempts overrides the number of write-then-verify cycles
// attempted before the operation is reported as failed.
func WithMaxAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBlockSize overrides the transfer block size used while writing
// and verifying the image.
func WithBlockSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.blockSize = n
		}
	}
}

// WithProgress registers a callback invoked after each block transfer
// and at the start of each verify pass.
func WithProgress(fn func(Progress)) Option {
	return func(c *config) { c.progress = fn }
}

// WithLogger routes internal log output through the given logger.
func WithLogger(log logr.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithConfirm installs an interactive confirmation hook. When it returns
// false the operation aborts before any write with OutcomeDeclined.
func WithConfirm(fn func() bool) Option {
	return func(c *config) { c.confirm = fn }
}

// WithUnlockGate installs the unlock and lock hooks guarding destructive
// flash regions. unlock runs once before the first write; lock runs
// unconditionally after the write-verify loop, whether it succeeded or
// exhausted its attempts.
func WithUnlockGate(unlock, lock func() error) Option {
	return func(c *config) {
		c.unlock = unlock
		c.lock = lock
	}
}

// WithPrecheck installs a readiness probe that runs before anything else.
// Returning false aborts the operation with OutcomeModeSwitchRequired.
func WithPrecheck(fn func() (bool, error)) Option {
	return func(c *config) { c.precheck = fn }
}

// WithModeSwitch installs the hook invoked when the precheck reports the
// device is not ready, typically toggling the boot configuration so the
// operator can retry after a power cycle.
func WithModeSwitch(fn func() error) Option {
	return func(c *config) { c.modeSwitch = fn }
}
