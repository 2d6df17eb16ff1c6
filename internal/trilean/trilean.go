// Package trilean implements three-valued logic for questions that cannot
// always be answered, such as whether a target is dirty or a partition exists.
package trilean

import (
	"fmt"
	"strings"
)

// Trilean is one of Unknown, No or Yes. The zero value is Unknown.
type Trilean int8

const (
	Unknown Trilean = iota
	No
	Yes
)

// FromBool converts a definite boolean answer.
func FromBool(b bool) Trilean {
	if b {
		return Yes
	}
	return No
}

// Not negates t; Unknown stays Unknown.
func (t Trilean) Not() Trilean {
	switch t {
	case Yes:
		return No
	case No:
		return Yes
	default:
		return Unknown
	}
}

// And is Yes only if both are Yes, No if either is No, otherwise Unknown.
func (t Trilean) And(o Trilean) Trilean {
	if t == No || o == No {
		return No
	}
	if t == Yes && o == Yes {
		return Yes
	}
	return Unknown
}

// Or is Yes if either is Yes, No only if both are No, otherwise Unknown.
func (t Trilean) Or(o Trilean) Trilean {
	if t == Yes || o == Yes {
		return Yes
	}
	if t == No && o == No {
		return No
	}
	return Unknown
}

// All folds ts with And. An empty argument list yields Yes.
func All(ts ...Trilean) Trilean {
	result := Yes
	for _, t := range ts {
		result = result.And(t)
		if result == No {
			return No
		}
	}
	return result
}

// Any folds ts with Or. An empty argument list yields No.
func Any(ts ...Trilean) Trilean {
	result := No
	for _, t := range ts {
		result = result.Or(t)
		if result == Yes {
			return Yes
		}
	}
	return result
}

// IsYes reports whether t is Yes.
func (t Trilean) IsYes() bool { return t == Yes }

// IsNo reports whether t is No.
func (t Trilean) IsNo() bool { return t == No }

// IsUnknown reports whether t is Unknown.
func (t Trilean) IsUnknown() bool { return t != Yes && t != No }

func (t Trilean) String() string {
	switch t {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unknown"
	}
}

// Parse accepts yes/no/unknown and the boolean spellings true/false.
func Parse(s string) (Trilean, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "y":
		return Yes, nil
	case "no", "false", "n":
		return No, nil
	case "unknown", "":
		return Unknown, nil
	default:
		return Unknown, fmt.Errorf("invalid trilean value %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler, used by JSON and YAML encoders.
func (t Trilean) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Trilean) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
