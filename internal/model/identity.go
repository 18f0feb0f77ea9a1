package model

// Identity is an opaque per-device token that distinguishes concurrent
// clients. It correlates a client's holds and is never a credential.
type Identity string

// String returns the identity as a plain string
func (id Identity) String() string {
	return string(id)
}
