package app

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	joinCodeMin   = 100000
	joinCodeRange = 900000
)

// randomJoinCode draws a six digit code in [100000, 999999].
func randomJoinCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(joinCodeRange))
	if err != nil {
		return "", fmt.Errorf("draw join code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+joinCodeMin), nil
}
