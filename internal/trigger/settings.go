package trigger

import "pishocker/internal/pishock"

// Settings is an immutable snapshot of the trigger configuration.
// A reload builds a new value; nothing mutates one in place.
type Settings struct {
	Enabled   bool
	Users     WatchList
	Nicknames map[string]string

	Operation pishock.Operation
	Warning   pishock.WarningWindow
	Auth      pishock.AuthMethod
}
