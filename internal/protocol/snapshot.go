package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ValuePrecision is the number of decimals written per sensor value, matching
// C++ std::to_string.
const ValuePrecision = 6

// Encode renders s as a single reply line.
func Encode(s Snapshot) []byte {
	return AppendSnapshot(nil, s)
}

// AppendSnapshot appends the reply encoding of s to dst.
func AppendSnapshot(dst []byte, s Snapshot) []byte {
	for n, r := range s {
		if n > 0 {
			dst = append(dst, ' ')
		}
		dst = append(dst, r.Name...)
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(len(r.Values)), 10)
		for _, v := range r.Values {
			dst = append(dst, ' ')
			dst = strconv.AppendFloat(dst, v, 'f', ValuePrecision, 64)
		}
	}
	return dst
}

// ParseSnapshot decodes a reply line back into readings. It is the client
// side inverse of Encode.
func ParseSnapshot(b []byte) (Snapshot, error) {
	fields := strings.Fields(string(b))
	var out Snapshot
	for i := 0; i < len(fields); {
		name := fields[i]
		if i+1 >= len(fields) {
			return out, fmt.Errorf("%w: sensor %q has no dimension", ErrMalformedSnapshot, name)
		}
		dim, err := strconv.Atoi(fields[i+1])
		if err != nil || dim < 0 {
			return out, fmt.Errorf("%w: sensor %q has bad dimension %q", ErrMalformedSnapshot, name, fields[i+1])
		}
		i += 2
		if i+dim > len(fields) {
			return out, fmt.Errorf("%w: sensor %q truncated", ErrMalformedSnapshot, name)
		}
		vals := make([]float64, dim)
		for k := 0; k < dim; k++ {
			v, err := strconv.ParseFloat(fields[i+k], 64)
			if err != nil {
				return out, fmt.Errorf("%w: sensor %q value %q", ErrMalformedSnapshot, name, fields[i+k])
			}
			vals[k] = v
		}
		i += dim
		out = append(out, Reading{Name: name, Values: vals})
	}
	return out, nil
}

// Lookup returns the reading named name.
func (s Snapshot) Lookup(name string) (Reading, bool) {
	for _, r := range s {
		if r.Name == name {
			return r, true
		}
	}
	return Reading{}, false
}
