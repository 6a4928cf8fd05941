package asset

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Handle is a 64-bit opaque asset identifier, unique per Registry. Zero is the
// null handle.
type Handle uint64

// NullHandle is the sentinel meaning "no asset".
const NullHandle Handle = 0

// NewHandle mints a new handle from a fresh time/random (v4, RFC 4122) UUID,
// folding its first eight bytes into a uint64 — the spec calls for a 64-bit
// "time/random UUID" identifier; a real UUID generator supplies the entropy and
// collision resistance, the fold keeps the type the spec names. Retries on the
// vanishingly unlikely chance of landing on the null sentinel.
func NewHandle() Handle {
	for {
		id := uuid.New()
		h := Handle(binary.LittleEndian.Uint64(id[:8]))
		if h != NullHandle {
			return h
		}
	}
}

// IsNull reports whether h is the null sentinel.
func (h Handle) IsNull() bool { return h == NullHandle }

func (h Handle) String() string { return fmt.Sprintf("%016x", uint64(h)) }
