// Package buildinfo carries values fixed at link time.
//
// Release builds set the mode with
//
//	go build -ldflags "-X jarconsole/internal/buildinfo.Mode=production" ./cmd/...
package buildinfo

import "time"

// ModeProduction is the value of Mode in release builds.
const ModeProduction = "production"

const (
	productionPollPeriod  = time.Second
	developmentPollPeriod = 3 * time.Second
)

// Mode is overwritten through -ldflags; anything other than "production" counts as a dev build.
var Mode = "development"

// Production reports whether the binary was built in production mode.
func Production() bool {
	return Mode == ModeProduction
}

// PollPeriod returns the status refresh interval for the given build mode.
func PollPeriod(mode string) time.Duration {
	if mode == ModeProduction {
		return productionPollPeriod
	}
	return developmentPollPeriod
}

// DefaultPollPeriod returns the refresh interval of this binary.
func DefaultPollPeriod() time.Duration {
	return PollPeriod(Mode)
}
