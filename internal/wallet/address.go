package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

var (
	// ErrInvalidAddress is returned for input that is not 0x followed by 40 hex digits.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrBadChecksum is returned for mixed-case input whose EIP-55 checksum does not match.
	ErrBadChecksum = errors.New("address checksum mismatch")
)

// Address is a 20-byte account address.
type Address [20]byte

// ParseAddress parses a hex address with a 0x prefix. All-lowercase and
// all-uppercase input is accepted as is; mixed case must carry a valid
// EIP-55 checksum.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimSpace(s)
	if len(s) != 42 || (s[:2] != "0x" && s[:2] != "0X") {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	digits := s[2:]
	if _, err := hex.Decode(a[:], []byte(digits)); err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	if digits != strings.ToLower(digits) && digits != strings.ToUpper(digits) {
		if a.String() != "0x"+digits {
			return Address{}, fmt.Errorf("%w: %s", ErrBadChecksum, s)
		}
	}
	return a, nil
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the EIP-55 checksummed form.
func (a Address) String() string {
	lower := hex.EncodeToString(a[:])

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	sum := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}

// Short returns the abbreviated display form, 0x1234...abcd.
func (a Address) Short() string {
	return Short(a.String())
}

// Short abbreviates an address-like string to its first six and last four
// characters. Strings too short to abbreviate are returned unchanged.
func Short(s string) string {
	if len(s) <= 13 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}
