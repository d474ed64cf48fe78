package trigger

import (
	"errors"
	"fmt"
	"strings"
)

// WatchList is the set of user ids whose messages fire the trigger.
// It keeps the configured order for display.
type WatchList struct {
	ids []string
	set map[string]struct{}
}

// ParseWatchList splits raw on commas and trims each entry. Empty entries are skipped.
// Entries are not validated here; see ValidateWatchList.
func ParseWatchList(raw string) WatchList {
	var wl WatchList
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if wl.set == nil {
			wl.set = make(map[string]struct{})
		}
		if _, dup := wl.set[id]; dup {
			continue
		}
		wl.set[id] = struct{}{}
		wl.ids = append(wl.ids, id)
	}
	return wl
}

func (w WatchList) Contains(id string) bool {
	_, ok := w.set[id]
	return ok
}

func (w WatchList) Len() int { return len(w.ids) }

func (w WatchList) IDs() []string { return append([]string(nil), w.ids...) }

func (w WatchList) String() string { return strings.Join(w.ids, ",") }

// ValidateWatchList reports every entry that is not all decimal digits.
func ValidateWatchList(raw string) error {
	var errs []error
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if !isDigits(id) {
			errs = append(errs, fmt.Errorf("%s isn't a valid user id", id))
		}
	}
	return errors.Join(errs...)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
