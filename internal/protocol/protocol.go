// Package protocol implements the line-oriented text protocol spoken between
// the control server and its client.
//
// A request carries one actuator command:
//
//	<actuator_name> <value>
//
// A reply carries every sensor in engine order, space separated, with no
// trailing delimiter:
//
//	<sensor_name> <dim> <v0> ... <v_{dim-1}> <sensor_name2> <dim2> ...
//
// Names never contain whitespace; that is what keeps the reply parseable
// without record separators.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// MaxNameLen is the longest accepted actuator name in bytes.
const MaxNameLen = 99

// Codec errors.
var (
	// ErrMalformed indicates a request without a name and a parseable value.
	ErrMalformed = errors.New("protocol: malformed command")

	// ErrNameTooLong indicates an actuator name exceeding the name buffer.
	ErrNameTooLong = errors.New("protocol: actuator name too long")

	// ErrMalformedSnapshot indicates a reply that does not decode into sensors.
	ErrMalformedSnapshot = errors.New("protocol: malformed snapshot")
)

// Command is one scalar actuator command.
type Command struct {
	Name  string
	Value float64
}

// String renders the command in request form.
func (c Command) String() string {
	return c.Name + " " + strconv.FormatFloat(c.Value, 'g', -1, 64)
}

// Reading is one sensor in a snapshot.
type Reading struct {
	Name   string
	Values []float64
}

// Dim returns the sensor dimension.
func (r Reading) Dim() int { return len(r.Values) }

// Snapshot is an ordered set of sensor readings taken between two steps.
type Snapshot []Reading

// Decoder parses requests with a configurable name bound.
type Decoder struct {
	MaxNameLen int
}

// Decode parses a request using the default name bound.
func Decode(b []byte) (Command, error) {
	return Decoder{}.Decode(b)
}

// Decode parses b into a Command. The first whitespace-delimited token is the
// actuator name and the second a floating point value; anything after that is
// ignored. NaN and Inf are passed through.
func (d Decoder) Decode(b []byte) (Command, error) {
	limit := d.MaxNameLen
	if limit <= 0 {
		limit = MaxNameLen
	}
	// Clients may send a NUL terminated buffer; stop at the first NUL.
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	name, rest := nextField(b)
	if len(name) == 0 {
		return Command{}, fmt.Errorf("%w: missing actuator name", ErrMalformed)
	}
	if len(name) > limit {
		return Command{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrNameTooLong, len(name), limit)
	}
	tok, _ := nextField(rest)
	if len(tok) == 0 {
		return Command{}, fmt.Errorf("%w: missing value for %q", ErrMalformed, name)
	}
	v, err := strconv.ParseFloat(string(tok), 64)
	if err != nil {
		var numErr *strconv.NumError
		// Out of range literals still carry ±Inf, which is passed through.
		if !errors.As(err, &numErr) || numErr.Err != strconv.ErrRange {
			return Command{}, fmt.Errorf("%w: bad value %q", ErrMalformed, tok)
		}
	}
	return Command{Name: string(name), Value: v}, nil
}

// nextField returns the first whitespace-delimited token of b and the
// remainder after it.
func nextField(b []byte) (field, rest []byte) {
	i := 0
	for i < len(b) && isSpace(b[i]) {
		i++
	}
	j := i
	for j < len(b) && !isSpace(b[j]) {
		j++
	}
	return b[i:j], b[j:]
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
