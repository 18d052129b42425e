package value

import (
	"encoding/binary"
	"math"

	"github.com/antibyte/retrobasic/pkg/basicerr"
)

// BinaryWidth is the byte length of the record encoding of t (MKx$/CVx).
func BinaryWidth(t DataType) int {
	switch t {
	case INT32, FLOAT:
		return 4
	case INT64, DOUBLE:
		return 8
	}
	return 0
}

// EncodeBinary returns the little-endian record bytes of v converted to t,
// as MKI$, MKL$, MKS$ and MKD$ do.
func EncodeBinary(v *Value, t DataType) (string, error) {
	tmp := New(t)
	if err := tmp.Assign(v); err != nil {
		return "", err
	}
	buf := make([]byte, BinaryWidth(t))
	switch t {
	case INT32:
		binary.LittleEndian.PutUint32(buf, uint32(int32(tmp.i)))
	case INT64:
		binary.LittleEndian.PutUint64(buf, uint64(tmp.i))
	case FLOAT:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(tmp.f)))
	case DOUBLE:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(tmp.f))
	default:
		return "", mismatch("number", t)
	}
	return string(buf), nil
}

// DecodeBinary is the inverse of EncodeBinary (CVI, CVL, CVS, CVD).
func DecodeBinary(s string, t DataType) (*Value, error) {
	width := BinaryWidth(t)
	if width == 0 {
		return nil, mismatch("number", t)
	}
	if len(s) != width {
		return nil, basicerr.Runtime(basicerr.IllegalFunctionCall,
			"%s conversion needs %d bytes, got %d", t, width, len(s))
	}
	buf := []byte(s)
	switch t {
	case INT32:
		return NewInt32(int32(binary.LittleEndian.Uint32(buf))), nil
	case INT64:
		return NewInt64(int64(binary.LittleEndian.Uint64(buf))), nil
	case FLOAT:
		return NewFloat(math.Float32frombits(binary.LittleEndian.Uint32(buf))), nil
	default:
		return NewDouble(math.Float64frombits(binary.LittleEndian.Uint64(buf))), nil
	}
}
