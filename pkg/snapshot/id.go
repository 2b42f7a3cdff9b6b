package snapshot

import (
	"bytes"

	"github.com/google/uuid"
)

// ID is a stable identifier for components, parts, nodes and edges.
type ID = uuid.UUID

// RootID identifies the root component of every snapshot.
var RootID = uuid.Nil

// namespace scopes name-derived ids.
var namespace = uuid.MustParse("0c6e4c55-9f0e-4b0e-8d8a-2f3a6b1d7c41")

// NewID returns a random identifier.
func NewID() ID {
	return uuid.New()
}

// NameID derives a deterministic identifier from a kind and a name, so a
// scripted scene keeps the same ids every time it is evaluated.
func NameID(kind, name string) ID {
	return uuid.NewSHA1(namespace, []byte(kind+"/"+name))
}

// lessID orders ids by their bytes.
func lessID(a, b ID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
