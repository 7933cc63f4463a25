package scheduler

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// SeedForSubject derives a stable seed from a subject id so that a subject
// who restarts gets the same trial order.
func SeedForSubject(subjectID int) int64 {
	return int64(xxhash.Sum64String("subject:" + strconv.Itoa(subjectID)))
}

// EntropySeed returns a fresh seed for production runs.
func EntropySeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}
