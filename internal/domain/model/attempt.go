package model

import "strconv"

// AttemptID identifies one attendance attempt within a session. Ids are
// minted in increasing order; zero means "no attempt".
type AttemptID uint64

func (id AttemptID) String() string {
	if id == 0 {
		return "none"
	}
	return "attempt-" + strconv.FormatUint(uint64(id), 10)
}
