package pishock

import (
	"fmt"
	"strings"
)

// Operation is what to send: kind, intensity (1..100) and duration (1..100).
type Operation struct {
	Kind      Op
	Intensity int
	Duration  int
}

// WarningWindow asks the device to beep with a random delay in [MinDelay, MaxDelay]
// seconds before the operation. Only the LinkOperate endpoint carries it.
type WarningWindow struct {
	Active   bool
	MinDelay int
	MaxDelay int
}

const (
	MethodIDKey        = "ID_KEY"
	MethodAPIShareCode = "API_SHARECODE"
)

// AuthMethod is either IDKey or APIShareCode. The set of implementations is closed.
type AuthMethod interface {
	Method() string
	isAuthMethod()
}

// IDKey authenticates against the LinkOperate endpoint.
type IDKey struct {
	ID  string
	Key string
}

// APIShareCode authenticates against the share-code endpoint.
type APIShareCode struct {
	APIKey    string
	ShareCode string
	// Username is the PiShock account name, not the Discord display name.
	Username string
}

func (IDKey) Method() string        { return MethodIDKey }
func (IDKey) isAuthMethod()         {}
func (APIShareCode) Method() string { return MethodAPIShareCode }
func (APIShareCode) isAuthMethod()  {}

// ParseMethod normalizes the method discriminator.
func ParseMethod(raw string) (string, error) {
	switch m := strings.ToUpper(strings.TrimSpace(raw)); m {
	case MethodIDKey, MethodAPIShareCode:
		return m, nil
	default:
		return "", fmt.Errorf("unknown pishock method %q (want %s or %s)", raw, MethodIDKey, MethodAPIShareCode)
	}
}

// DispatchRequest is everything needed to issue one command.
type DispatchRequest struct {
	// DisplayName is the name of the message author shown in the PiShock logs.
	DisplayName string
	Operation   Operation
	Warning     WarningWindow
	Auth        AuthMethod
}

// Ticket identifies an accepted dispatch. The outcome is only visible in logs and bus events.
type Ticket struct {
	ID     string
	Method string
}
