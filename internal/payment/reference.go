package payment

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const referenceLen = 36

const referenceAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewReference returns a unique payment reference. A UUID when the
// secure-random source is healthy; otherwise a pseudo-random alphanumeric
// string of the same length, so callers never see an empty reference.
func NewReference() string {
	id, err := uuid.NewRandom()
	if err == nil {
		return id.String()
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	buf := make([]byte, referenceLen)
	for i := range buf {
		buf[i] = referenceAlphabet[rng.Intn(len(referenceAlphabet))]
	}
	return string(buf)
}
