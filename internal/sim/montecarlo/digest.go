package montecarlo

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"antventure.ai/internal/sim/colony"
)

// Digest hashes a table in row order. Two runs with the same parameters, tuning and seed
// produce the same digest.
func Digest(rows []colony.Sample) string {
	h := sha256.New()
	var tmp [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp[:], v)
		h.Write(tmp[:])
	}
	put(uint64(len(rows)))
	for _, r := range rows {
		put(uint64(r.Repetition))
		put(uint64(r.Time))
		put(math.Float64bits(r.Fed))
		put(uint64(r.Inside))
		put(uint64(r.Outside))
		put(uint64(r.Source))
		put(uint64(r.Informed))
	}
	return hex.EncodeToString(h.Sum(nil))
}
