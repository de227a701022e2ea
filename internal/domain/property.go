package domain

import "strings"

// InternalPropertyPrefix marks system properties (crawler bookkeeping such as a
// source site's own deal id). They must never be exposed to untrusted callers.
const InternalPropertyPrefix = "__"

const (
	PropertyNameMaxLen  = 64
	PropertyValueMaxLen = 1024
)

func InternalPropertyName(name string) string {
	if strings.HasPrefix(name, InternalPropertyPrefix) {
		return name
	}
	return InternalPropertyPrefix + name
}

func IsInternalPropertyName(name string) bool {
	return strings.HasPrefix(name, InternalPropertyPrefix)
}

// NamedValue is implemented by every owner-specific property row.
type NamedValue interface {
	PropertyName() string
	PropertyValue() string
	SetPropertyValue(v string)
}

// PublicProperties drops internal properties, preserving order.
func PublicProperties[P NamedValue](props []P) []P {
	out := make([]P, 0, len(props))
	for _, p := range props {
		if IsInternalPropertyName(p.PropertyName()) {
			continue
		}
		out = append(out, p)
	}
	return out
}
