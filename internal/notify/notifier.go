package notify

import "log/slog"

// Notifier is the pair of opaque side-effect sinks the dispatcher drives: an
// audio alert and a toast. Neither returns anything the core depends on.
type Notifier interface {
	Play()
	Toast(msg string)
}

// SlogNotifier is the default Notifier, logging in place of real audio/toast
// primitives. Platform frontends substitute their own implementation.
type SlogNotifier struct{}

func (SlogNotifier) Play() {
	slog.Info("Notification sound")
}

func (SlogNotifier) Toast(msg string) {
	slog.Info("Toast", slog.String("message", msg))
}
