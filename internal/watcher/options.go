package watcher

import "time"

// Options configures the file watcher behavior.
type Options struct {
	// Ignore reports whether a path must not be watched or reported.
	// Ignored directories are pruned from the watch entirely, so
	// activity inside them never reaches the event channel.
	Ignore func(path string) bool

	// SettleDelay is how long a file must remain unchanged before the
	// fsnotify backend reports it as ready.
	SettleDelay time.Duration

	// UsePolling forces the polling backend regardless of platform.
	// Lower fidelity and higher latency, but works on filesystems
	// where native notifications are unreliable (network mounts,
	// some containers).
	UsePolling bool

	// PollInterval is the scan period of the polling backend.
	PollInterval time.Duration
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 100 * time.Millisecond
	}
	if o.PollInterval == 0 {
		o.PollInterval = 2 * time.Second
	}
}

// shouldIgnore checks the configured ignore hook.
func (o *Options) shouldIgnore(path string) bool {
	return o.Ignore != nil && o.Ignore(path)
}
