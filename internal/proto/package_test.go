package proto

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPackageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pkg  Package
	}{
		{
			name: "no auth, empty payload",
			pkg:  NewPackage(0x01, nil, nil),
		},
		{
			name: "no auth, payload",
			pkg:  NewPackage(0x02, []byte{0xDE, 0xAD, 0xBE, 0xEF}, nil),
		},
		{
			name: "with auth",
			pkg:  NewPackage(0x03, []byte("hello"), &Credentials{Login: "admin", Password: "changeit"}),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Encode(tc.pkg)
			require.NoError(t, err)

			decoded, err := Decode(encoded)
			require.NoError(t, err)

			if diff := cmp.Diff(tc.pkg.Command, decoded.Command); diff != "" {
				t.Fatalf("command mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.pkg.Flags, decoded.Flags); diff != "" {
				t.Fatalf("flags mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.pkg.CorrelationID, decoded.CorrelationID); diff != "" {
				t.Fatalf("correlation id mismatch (-want +got):\n%s", diff)
			}
			require.Equal(t, tc.pkg.Auth, decoded.Auth)
			require.True(t, bytes.Equal(tc.pkg.Payload, decoded.Payload))
		})
	}
}

func TestPackageCorrelationIDUnique(t *testing.T) {
	a := NewPackage(0x01, nil, nil)
	b := NewPackage(0x01, nil, nil)
	require.NotEqual(t, uuid.Nil, a.CorrelationID)
	require.NotEqual(t, a.CorrelationID, b.CorrelationID)
}

func TestDecodeRejectsTruncated(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte("some package bytes")

	require.NoError(t, WriteFrame(&buf, body))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, body, got)
}

func TestFrameRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, MaxFrameSize+1))
	require.ErrorIs(t, err, ErrFrameTooLarge)
}
