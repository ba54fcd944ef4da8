package proto

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// Flag bits recognized on a Package.
const (
	FlagNone byte = 0
	FlagAuth byte = 0x01
)

// Credentials are carried in the package header when FlagAuth is set.
type Credentials struct {
	Login    string
	Password string
}

// Package is the typed protocol unit framed by Frame: a command byte, flag
// byte, a client-generated correlation id unique per pending operation or
// subscription, optional credentials, and an opaque payload whose schema is
// a collaborator concern.
type Package struct {
	Command       byte
	Flags         byte
	CorrelationID uuid.UUID
	Auth          *Credentials
	Payload       []byte
}

// NewPackage builds a Package with a freshly generated correlation id.
func NewPackage(command byte, payload []byte, auth *Credentials) Package {
	p := Package{
		Command:       command,
		CorrelationID: uuid.New(),
		Payload:       payload,
	}
	if auth != nil {
		p.Flags |= FlagAuth
		p.Auth = auth
	}
	return p
}

// Encode serializes p into the package-level wire layout:
//
//	command (u8) | flags (u8) | correlationId (16 bytes) |
//	[authLen(u8), login, passLen(u8), pass if Auth flag set] | payload
func Encode(p Package) ([]byte, error) {
	if p.Flags&FlagAuth != 0 && p.Auth == nil {
		return nil, fmt.Errorf("proto: auth flag set without credentials")
	}
	if p.Auth != nil && (len(p.Auth.Login) > 255 || len(p.Auth.Password) > 255) {
		return nil, fmt.Errorf("proto: credential field exceeds 255 bytes")
	}

	var buf bytes.Buffer
	buf.WriteByte(p.Command)
	buf.WriteByte(p.Flags)
	buf.Write(p.CorrelationID[:])

	if p.Flags&FlagAuth != 0 {
		buf.WriteByte(byte(len(p.Auth.Login)))
		buf.WriteString(p.Auth.Login)
		buf.WriteByte(byte(len(p.Auth.Password)))
		buf.WriteString(p.Auth.Password)
	}

	buf.Write(p.Payload)
	return buf.Bytes(), nil
}

// Decode parses the package-level wire layout out of raw.
func Decode(raw []byte) (Package, error) {
	const headerLen = 1 + 1 + 16
	if len(raw) < headerLen {
		return Package{}, fmt.Errorf("proto: package too short: %d bytes", len(raw))
	}

	var p Package
	p.Command = raw[0]
	p.Flags = raw[1]

	var id uuid.UUID
	copy(id[:], raw[2:18])
	p.CorrelationID = id

	rest := raw[headerLen:]
	if p.Flags&FlagAuth != 0 {
		if len(rest) < 1 {
			return Package{}, fmt.Errorf("proto: truncated auth login length")
		}
		loginLen := int(rest[0])
		rest = rest[1:]
		if len(rest) < loginLen+1 {
			return Package{}, fmt.Errorf("proto: truncated auth login")
		}
		login := string(rest[:loginLen])
		rest = rest[loginLen:]

		passLen := int(rest[0])
		rest = rest[1:]
		if len(rest) < passLen {
			return Package{}, fmt.Errorf("proto: truncated auth password")
		}
		password := string(rest[:passLen])
		rest = rest[passLen:]

		p.Auth = &Credentials{Login: login, Password: password}
	}

	p.Payload = rest
	return p, nil
}

// ReadPackage reads and decodes one framed package from a frame reader
// function (normally proto.ReadFrame bound to a net.Conn).
func ReadPackage(readFrame func() ([]byte, error)) (Package, error) {
	body, err := readFrame()
	if err != nil {
		return Package{}, err
	}
	return Decode(body)
}
