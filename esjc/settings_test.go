package esjc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSettingsBuilderAppliesOverrides(t *testing.T) {
	creds := &UserCredentials{Username: "admin", Password: "changeit"}

	s := Create().
		SetOperationTimeout(5 * time.Second).
		SetMaxReconnections(3).
		SetDefaultUserCredentials(creds).
		SetHeartbeatInterval(time.Second).
		Build()

	require.Equal(t, 5*time.Second, s.OperationTimeout)
	require.Equal(t, 3, s.MaxReconnections)
	require.Equal(t, creds, s.DefaultUserCredentials)
	require.Equal(t, time.Second, s.HeartbeatInterval)
}

func TestSettingsBuilderDefaultsWithoutOverrides(t *testing.T) {
	s := Create().Build()

	require.NotZero(t, s.OperationTimeout)
	require.Equal(t, DefaultCodec, s.Codec)
	require.Nil(t, s.DefaultUserCredentials)
}

func TestUserCredentialsToProtoNilSafe(t *testing.T) {
	var creds *UserCredentials
	require.Nil(t, creds.toProto())

	creds = &UserCredentials{Username: "u", Password: "p"}
	p := creds.toProto()
	require.Equal(t, "u", p.Login)
	require.Equal(t, "p", p.Password)
}

func TestStaticEndpointUsesGivenAddresses(t *testing.T) {
	d := StaticEndpoint("127.0.0.1:1113", "127.0.0.1:1114")
	require.NotNil(t, d)
}
