package heating

// Notifier delivers a push notification.
type Notifier interface {
	Notify(target, title, message string, silent bool) error
}

// RuleSource fetches a schedule's weekly rule table from the host.
// The callback is invoked on the dispatch loop.
type RuleSource interface {
	FetchSchedule(entityID string, cb func(WeekRules, error))
}

// Logger is the logging interface used by the heating components.
// It is satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopNotifier struct{}

func (noopNotifier) Notify(string, string, string, bool) error { return nil }
