// Package mindustry encodes the configuration files a Mindustry dedicated
// server reads at startup.
package mindustry

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Value type tags of the settings.bin format.
const (
	typeInt    byte = 1
	typeString byte = 4
)

// ErrTooLong is returned when a key or string value does not fit the
// format's 16-bit length prefix.
var ErrTooLong = errors.New("settings value exceeds 65535 bytes")

// ErrMalformed is returned when decoding a settings file that is truncated
// or uses an unsupported value type.
var ErrMalformed = errors.New("malformed settings file")

// Setting is one key of a settings file. Value is a string or an int32.
type Setting struct {
	Key   string
	Value any
}

// Settings is an ordered list of server settings.
type Settings []Setting

// ServerSettings returns the settings of a freshly provisioned game server.
func ServerSettings(name string, port int, startCommands string) Settings {
	return Settings{
		{Key: "name", Value: name},
		{Key: "port", Value: int32(port)},
		{Key: "startCommands", Value: startCommands},
	}
}

// MarshalBinary encodes s as big-endian: an int32 entry count, then for
// every entry a length-prefixed key, a type tag and the value.
func (s Settings) MarshalBinary() ([]byte, error) {
	buf := binary.BigEndian.AppendUint32(nil, uint32(len(s)))
	var err error
	for _, e := range s {
		if buf, err = appendUTF(buf, e.Key); err != nil {
			return nil, err
		}
		switch v := e.Value.(type) {
		case string:
			if buf, err = appendUTF(append(buf, typeString), v); err != nil {
				return nil, err
			}
		case int32:
			buf = binary.BigEndian.AppendUint32(append(buf, typeInt), uint32(v))
		default:
			return nil, fmt.Errorf("setting %q: unsupported value type %T", e.Key, e.Value)
		}
	}
	return buf, nil
}

// UnmarshalBinary decodes the format written by MarshalBinary.
func (s *Settings) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out := make(Settings, 0, max(n, 0))
	for range n {
		key, err := readUTF(r)
		if err != nil {
			return err
		}
		tag, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch tag {
		case typeString:
			v, err := readUTF(r)
			if err != nil {
				return err
			}
			out = append(out, Setting{Key: key, Value: v})
		case typeInt:
			var v int32
			if err := binary.Read(r, binary.BigEndian, &v); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			out = append(out, Setting{Key: key, Value: v})
		default:
			return fmt.Errorf("%w: key %q has type %d", ErrMalformed, key, tag)
		}
	}
	*s = out
	return nil
}

func appendUTF(buf []byte, s string) ([]byte, error) {
	if len(s) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %.20q...", ErrTooLong, s)
	}
	return append(binary.BigEndian.AppendUint16(buf, uint16(len(s))), s...), nil
}

func readUTF(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return string(b), nil
}
