package chat

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

const (
	threadSuffixLen = 9
	base36Alphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// NewThreadID returns a thread id of the form thread_<unix ms>_<9 base36 chars>.
func NewThreadID(now time.Time) (string, error) {
	suffix := make([]byte, threadSuffixLen)
	limit := big.NewInt(int64(len(base36Alphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		suffix[i] = base36Alphabet[n.Int64()]
	}
	return "thread_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix), nil
}
