package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Record layout, version 1:
//
//	[0]      version
//	[1]      flags (bit 0: device bound)
//	[2:34]   device fingerprint
//	...      userID, displayName (uint16 length + bytes)
//	...      role count (byte), each role (byte length + bytes)
//	...      issuedAt, expiresAt (int64 big endian)
//
// The fingerprint sits at a fixed offset so the validate script can compare
// it without decoding the rest of the record.
const (
	recordFormatVersion = 1

	flagDeviceBound byte = 1 << 0

	fingerprintOffset = 2
	fingerprintEnd    = fingerprintOffset + 32
	maxRoles          = 255
)

var (
	// ErrSessionCorrupt is returned when a stored record cannot be decoded.
	ErrSessionCorrupt = errors.New("session record corrupt")
	errFieldTooLong   = errors.New("session field too long")
)

// Encode serializes s into the compact binary record stored in Redis.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(fingerprintEnd + len(s.UserID) + len(s.DisplayName) + 32)

	buf.WriteByte(recordFormatVersion)
	var flags byte
	if s.DeviceBound {
		flags |= flagDeviceBound
	}
	buf.WriteByte(flags)
	buf.Write(s.DeviceFingerprint[:])

	if err := writeString16(&buf, s.UserID); err != nil {
		return nil, err
	}
	if err := writeString16(&buf, s.DisplayName); err != nil {
		return nil, err
	}

	if len(s.Roles) > maxRoles {
		return nil, errFieldTooLong
	}
	buf.WriteByte(byte(len(s.Roles)))
	for _, role := range s.Roles {
		if len(role) > 255 {
			return nil, errFieldTooLong
		}
		buf.WriteByte(byte(len(role)))
		buf.WriteString(role)
	}

	if err := binary.Write(&buf, binary.BigEndian, s.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a record produced by Encode. Handle is left empty; the
// store fills it from the key.
func Decode(data []byte) (*Session, error) {
	if len(data) < fingerprintEnd {
		return nil, ErrSessionCorrupt
	}
	if data[0] != recordFormatVersion {
		return nil, ErrSessionCorrupt
	}

	s := &Session{DeviceBound: data[1]&flagDeviceBound != 0}
	copy(s.DeviceFingerprint[:], data[fingerprintOffset:fingerprintEnd])

	reader := bytes.NewReader(data[fingerprintEnd:])

	var err error
	if s.UserID, err = readString16(reader); err != nil {
		return nil, ErrSessionCorrupt
	}
	if s.DisplayName, err = readString16(reader); err != nil {
		return nil, ErrSessionCorrupt
	}

	count, err := reader.ReadByte()
	if err != nil {
		return nil, ErrSessionCorrupt
	}
	s.Roles = make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		n, err := reader.ReadByte()
		if err != nil {
			return nil, ErrSessionCorrupt
		}
		role := make([]byte, n)
		if _, err := io.ReadFull(reader, role); err != nil {
			return nil, ErrSessionCorrupt
		}
		s.Roles = append(s.Roles, string(role))
	}

	if err := binary.Read(reader, binary.BigEndian, &s.IssuedAt); err != nil {
		return nil, ErrSessionCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, ErrSessionCorrupt
	}
	if reader.Len() != 0 {
		return nil, ErrSessionCorrupt
	}

	return s, nil
}

func writeString16(buf *bytes.Buffer, v string) error {
	if len(v) > 0xFFFF {
		return errFieldTooLong
	}
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(v)))
	buf.Write(n[:])
	buf.WriteString(v)
	return nil
}

func readString16(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
