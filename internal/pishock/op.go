package pishock

import (
	"fmt"
	"strings"
)

// Op is the kind of action the device performs.
type Op int

const (
	Shock Op = iota
	Vibration
	Beep
)

func (o Op) String() string {
	switch o {
	case Shock:
		return "Shock"
	case Vibration:
		return "Vibration"
	case Beep:
		return "Beep"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// LetterCode is the serialization used by the LinkOperate endpoint.
func (o Op) LetterCode() string {
	switch o {
	case Vibration:
		return "v"
	case Beep:
		return "b"
	default:
		return "s"
	}
}

// NumericCode is the serialization used by the share-code endpoint.
func (o Op) NumericCode() int {
	switch o {
	case Vibration:
		return 1
	case Beep:
		return 2
	default:
		return 0
	}
}

func (o Op) Valid() bool { return o >= Shock && o <= Beep }

// ParseOp accepts the names Shock, Vibration and Beep (any case) and the letter codes s, v and b.
func ParseOp(raw string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "shock", "s":
		return Shock, nil
	case "vibration", "vibrate", "v":
		return Vibration, nil
	case "beep", "b":
		return Beep, nil
	default:
		return Shock, fmt.Errorf("unknown operation %q (want Shock, Vibration or Beep)", raw)
	}
}
