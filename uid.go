package rtio

import "github.com/rs/xid"

// UID identifies a component in logs and metrics.
type UID string

// NewUID returns new unique id value.
func NewUID() UID {
	return UID(xid.New().String())
}

// ID returns the id value.
func (id UID) ID() string {
	return string(id)
}
