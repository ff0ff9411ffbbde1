package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/milk9111/boxfall/physics"
)

// MaxBodyCount bounds the inbound body count.
const MaxBodyCount = 20000

// ErrInvalidBodyCount is returned for counts that are negative, fractional,
// non-finite, too large or not numbers at all.
var ErrInvalidBodyCount = errors.New("protocol: invalid body count")

// Frame is emitted once per tick.
type Frame struct {
	Objects []physics.Pose `json:"objects"`
	CurrFPS int            `json:"currFPS"`
	AllFPS  int            `json:"allFPS"`
}

// Encode marshals f to JSON.
func (f Frame) Encode() ([]byte, error) {
	if f.Objects == nil {
		f.Objects = []physics.Pose{}
	}
	return json.Marshal(f)
}

// DecodeFrame parses a JSON frame.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("protocol: decode frame: %w", err)
	}
	return f, nil
}

// EncodeBodyCount marshals n as the inbound message.
func EncodeBodyCount(n int) ([]byte, error) {
	if err := ValidateBodyCount(float64(n)); err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

// DecodeBodyCount parses a bare JSON number.
func DecodeBodyCount(b []byte) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(b)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidBodyCount, err)
	}
	if dec.More() {
		return 0, fmt.Errorf("%w: trailing data", ErrInvalidBodyCount)
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: not a number", ErrInvalidBodyCount)
	}
	f, err := num.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidBodyCount, err)
	}
	if err := ValidateBodyCount(f); err != nil {
		return 0, err
	}
	return int(f), nil
}

// ValidateBodyCount checks that n is a whole number in [0, MaxBodyCount].
func ValidateBodyCount(n float64) error {
	switch {
	case math.IsNaN(n) || math.IsInf(n, 0):
		return fmt.Errorf("%w: %v is not finite", ErrInvalidBodyCount, n)
	case n < 0:
		return fmt.Errorf("%w: %v is negative", ErrInvalidBodyCount, n)
	case n != math.Trunc(n):
		return fmt.Errorf("%w: %v is not a whole number", ErrInvalidBodyCount, n)
	case n > MaxBodyCount:
		return fmt.Errorf("%w: %v exceeds %d", ErrInvalidBodyCount, n, MaxBodyCount)
	}
	return nil
}

// Error is sent back to a controller whose message was rejected.
type Error struct {
	Error string `json:"error"`
}
