package migrate

import (
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator synthesizes a fresh unique id for an entity kind ("marker" or
// "photo"). Implementations must never return an id they produced before.
type IDGenerator func(kind string) string

// UUIDGenerator is the default IDGenerator. It produces collision-resistant
// ids scoped by entity kind, e.g. "marker-5f0c…".
func UUIDGenerator(kind string) string {
	return kind + "-" + uuid.NewString()
}

// SequentialGenerator returns a deterministic IDGenerator for tests:
// "marker-1", "photo-2", … in call order.
func SequentialGenerator() IDGenerator {
	n := 0
	return func(kind string) string {
		n++
		return fmt.Sprintf("%s-%d", kind, n)
	}
}
