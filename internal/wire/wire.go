// Package wire implements the BinarySerializer of spec §4.5: a compact
// self-describing wire format used when a payload is dominated by typed
// numeric arrays, skipping structural cloning in favour of a single tagged
// byte stream plus an external buffer table for zero-copy transfer.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"time"
)

// Magic and Version form the 4-byte + 1-byte frame header named in §6.
const (
	Magic   uint32 = 0x57504253
	Version byte   = 1
)

type tag byte

const (
	tagNull tag = iota
	tagUndefined
	tagBool
	tagFloat64
	tagString
	tagBigIntDecimal
	tagDateMs
	tagArray
	tagObject
	tagMap
	tagSet
	tagError
	tagBinary
)

// Buffer carries raw bytes destined for the external buffer table, e.g. a
// typed array or plain byte slice. Kind names the typed-array flavour for
// reconstruction on the far side ("float64", "int32", "bytes", ...).
type Buffer struct {
	Kind  string
	Bytes []byte
}

// WireError is the round-tripped form of Go errors: name + message only,
// matching the source format's error(name, message) tag.
type WireError struct {
	Name    string
	Message string
}

func (e *WireError) Error() string { return e.Name + ": " + e.Message }

// sizeThresholdBytes is the default threshold ShouldUseBinary compares
// total typed-array bytes against.
const sizeThresholdBytes = 8 * 1024

// ShouldUseBinary reports whether v is dominated by typed-array bytes
// beyond the threshold, per §4.5.
func ShouldUseBinary(v any) bool {
	return typedArrayBytes(v) > sizeThresholdBytes
}

func typedArrayBytes(v any) int {
	switch x := v.(type) {
	case Buffer:
		return len(x.Bytes)
	case []Buffer:
		total := 0
		for _, b := range x {
			total += len(b.Bytes)
		}
		return total
	case map[string]any:
		total := 0
		for _, vv := range x {
			total += typedArrayBytes(vv)
		}
		return total
	case []any:
		total := 0
		for _, vv := range x {
			total += typedArrayBytes(vv)
		}
		return total
	default:
		return 0
	}
}

// EstimateSize returns an approximate byte footprint for the memory guard
// (§4.5), not a precise serialized length.
func EstimateSize(v any) int64 {
	return int64(estimateSize(v))
}

func estimateSize(v any) int {
	switch x := v.(type) {
	case nil:
		return 1
	case bool:
		return 1
	case float64, int, int64:
		return 8
	case string:
		return len(x) + 4
	case Buffer:
		return len(x.Bytes) + 8
	case time.Time:
		return 8
	case []any:
		total := 4
		for _, vv := range x {
			total += estimateSize(vv)
		}
		return total
	case map[string]any:
		total := 4
		for k, vv := range x {
			total += len(k) + 4 + estimateSize(vv)
		}
		return total
	default:
		return 16
	}
}

// Serialize encodes v into the self-describing wire format, returning the
// tagged-value stream and the external buffer table it references.
func Serialize(v any) (frame []byte, buffers []Buffer, err error) {
	var body bytes.Buffer
	var bufs []Buffer
	if err := encodeValue(&body, v, &bufs); err != nil {
		return nil, nil, err
	}

	var header bytes.Buffer
	binary.Write(&header, binary.BigEndian, Magic)
	header.WriteByte(Version)
	headerLen := uint32(9) // magic(4) + version(1) + headerLen(4) itself is fixed-size prefix
	binary.Write(&header, binary.BigEndian, headerLen)
	binary.Write(&header, binary.BigEndian, uint32(len(bufs)))

	out := append(header.Bytes(), body.Bytes()...)
	return out, bufs, nil
}

func encodeValue(w *bytes.Buffer, v any, bufs *[]Buffer) error {
	switch x := v.(type) {
	case nil:
		w.WriteByte(byte(tagNull))
	case bool:
		w.WriteByte(byte(tagBool))
		if x {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case float64:
		w.WriteByte(byte(tagFloat64))
		binary.Write(w, binary.BigEndian, math.Float64bits(x))
	case int:
		return encodeValue(w, float64(x), bufs)
	case int64:
		return encodeValue(w, float64(x), bufs)
	case string:
		w.WriteByte(byte(tagString))
		writeLenPrefixed(w, []byte(x))
	case time.Time:
		w.WriteByte(byte(tagDateMs))
		ms := float64(x.UnixMilli())
		binary.Write(w, binary.BigEndian, math.Float64bits(ms))
	case *WireError:
		w.WriteByte(byte(tagError))
		writeLenPrefixed(w, []byte(x.Name))
		writeLenPrefixed(w, []byte(x.Message))
	case Buffer:
		idx := len(*bufs)
		*bufs = append(*bufs, x)
		w.WriteByte(byte(tagBinary))
		writeLenPrefixed(w, []byte(x.Kind))
		binary.Write(w, binary.BigEndian, uint32(idx))
		binary.Write(w, binary.BigEndian, uint32(len(x.Bytes)))
	case []any:
		w.WriteByte(byte(tagArray))
		binary.Write(w, binary.BigEndian, uint32(len(x)))
		for _, item := range x {
			if err := encodeValue(w, item, bufs); err != nil {
				return err
			}
		}
	case map[string]any:
		w.WriteByte(byte(tagObject))
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys) // deterministic encoding for round-trip tests
		binary.Write(w, binary.BigEndian, uint32(len(keys)))
		for _, k := range keys {
			writeLenPrefixed(w, []byte(k))
			if err := encodeValue(w, x[k], bufs); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("wire: unsupported type %T", v)
	}
	return nil
}

func writeLenPrefixed(w *bytes.Buffer, b []byte) {
	binary.Write(w, binary.BigEndian, uint32(len(b)))
	w.Write(b)
}

// Deserialize verifies the header and rebuilds a value in a single pass,
// reattaching the external buffer table's bytes at each tagBinary site.
func Deserialize(frame []byte, buffers []Buffer) (any, error) {
	r := bytes.NewReader(frame)

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("wire: bad magic %#x", magic)
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("wire: unsupported version %d", version)
	}
	var headerLen, bufCount uint32
	if err := binary.Read(r, binary.BigEndian, &headerLen); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &bufCount); err != nil {
		return nil, err
	}

	return decodeValue(r, buffers)
}

func decodeValue(r *bytes.Reader, buffers []Buffer) (any, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag(tagByte) {
	case tagNull:
		return nil, nil
	case tagBool:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case tagFloat64:
		var bits uint64
		if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
			return nil, err
		}
		return math.Float64frombits(bits), nil
	case tagString:
		b, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case tagDateMs:
		var bits uint64
		if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
			return nil, err
		}
		ms := int64(math.Float64frombits(bits))
		return time.UnixMilli(ms).UTC(), nil
	case tagError:
		name, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		msg, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		return &WireError{Name: string(name), Message: string(msg)}, nil
	case tagBinary:
		kind, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		var idx, length uint32
		if err := binary.Read(r, binary.BigEndian, &idx); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		if int(idx) >= len(buffers) {
			return nil, fmt.Errorf("wire: buffer index %d out of range", idx)
		}
		return Buffer{Kind: string(kind), Bytes: buffers[idx].Bytes}, nil
	case tagArray:
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		arr := make([]any, n)
		for i := range arr {
			v, err := decodeValue(r, buffers)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil
	case tagObject:
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		obj := make(map[string]any, n)
		for i := uint32(0); i < n; i++ {
			k, err := readLenPrefixed(r)
			if err != nil {
				return nil, err
			}
			v, err := decodeValue(r, buffers)
			if err != nil {
				return nil, err
			}
			obj[string(k)] = v
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("wire: unknown tag %d", tagByte)
	}
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
