package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
)

// balanceBits is the width of a Balance. Values never exceed 2^128-1.
const balanceBits = 128

// balanceBytes is the length of the big-endian binary encoding.
const balanceBytes = balanceBits / 8

// maxDecimalDigits is the number of digits in 2^128-1.
const maxDecimalDigits = 39

var maxBalance = func() uint256.Int {
	var m uint256.Int
	m.Lsh(uint256.NewInt(1), balanceBits)
	m.SubUint64(&m, 1)
	return m
}()

var (
	// Zero is the empty balance. It is also what absent accounts hold.
	Zero = Balance{}
	// MaxBalance is the largest representable balance.
	MaxBalance = Balance{v: maxBalance}
)

// Balance is an unsigned 128-bit token quantity in the smallest unit.
// All arithmetic is checked; nothing wraps.
type Balance struct {
	v uint256.Int
}

// NewBalance returns a Balance holding n.
func NewBalance(n uint64) Balance {
	var b Balance
	b.v.SetUint64(n)
	return b
}

// ParseBalance parses a base-10 amount. Signs, whitespace and empty input are
// rejected with ErrInvalidAmount; values above MaxBalance with ErrOverflow.
func ParseBalance(s string) (Balance, error) {
	if s == "" {
		return Balance{}, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return Balance{}, fmt.Errorf("%w: %q is not a decimal integer", ErrInvalidAmount, s)
		}
	}
	trimmed := s
	for len(trimmed) > 1 && trimmed[0] == '0' {
		trimmed = trimmed[1:]
	}
	if len(trimmed) > maxDecimalDigits {
		return Balance{}, fmt.Errorf("%w: %s exceeds 128 bits", ErrOverflow, s)
	}
	v, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return Balance{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if v.Gt(&maxBalance) {
		return Balance{}, fmt.Errorf("%w: %s exceeds 128 bits", ErrOverflow, s)
	}
	return Balance{v: *v}, nil
}

// MustParseBalance is ParseBalance for constants; it panics on bad input.
func MustParseBalance(s string) Balance {
	b, err := ParseBalance(s)
	if err != nil {
		panic(err)
	}
	return b
}

// BalanceFromBytes decodes the 16-byte big-endian form produced by Bytes.
func BalanceFromBytes(buf []byte) (Balance, error) {
	if len(buf) != balanceBytes {
		return Balance{}, fmt.Errorf("%w: balance encoding has %d bytes, want %d", ErrInvalidAmount, len(buf), balanceBytes)
	}
	var b Balance
	b.v.SetBytes(buf)
	return b, nil
}

// CheckedAdd returns b+o, or false if the sum does not fit in 128 bits.
func (b Balance) CheckedAdd(o Balance) (Balance, bool) {
	var sum uint256.Int
	if _, overflow := sum.AddOverflow(&b.v, &o.v); overflow || sum.Gt(&maxBalance) {
		return Balance{}, false
	}
	return Balance{v: sum}, true
}

// CheckedSub returns b-o, or false if o is larger than b.
func (b Balance) CheckedSub(o Balance) (Balance, bool) {
	var diff uint256.Int
	if _, underflow := diff.SubOverflow(&b.v, &o.v); underflow {
		return Balance{}, false
	}
	return Balance{v: diff}, true
}

// Cmp returns -1, 0 or +1 depending on whether b is less than, equal to or
// greater than o.
func (b Balance) Cmp(o Balance) int {
	return b.v.Cmp(&o.v)
}

// LessThan reports whether b < o.
func (b Balance) LessThan(o Balance) bool {
	return b.v.Lt(&o.v)
}

// IsZero reports whether the balance is empty.
func (b Balance) IsZero() bool {
	return b.v.IsZero()
}

// String returns the decimal representation.
func (b Balance) String() string {
	return b.v.Dec()
}

// Bytes returns the 16-byte big-endian encoding.
func (b Balance) Bytes() []byte {
	full := b.v.Bytes32()
	out := make([]byte, balanceBytes)
	copy(out, full[32-balanceBytes:])
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (b Balance) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Balance) UnmarshalText(text []byte) error {
	parsed, err := ParseBalance(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// MarshalJSON encodes the balance as a quoted decimal string.
func (b Balance) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON accepts either a quoted decimal string or a bare JSON integer.
func (b *Balance) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
	} else {
		s = string(data)
	}
	return b.UnmarshalText([]byte(s))
}
