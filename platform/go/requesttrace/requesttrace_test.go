package requesttrace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	platformauth "github.com/motorline/dealerdesk/platform/go/auth"
)

func TestFromCredentials(t *testing.T) {
	t.Parallel()

	audit, err := FromCredentials(&platformauth.UserCredentials{SubjectID: "fb-user-1"}, "req-1")
	require.NoError(t, err)
	require.Equal(t, ActorKindUser, audit.ActorKind)
	require.NotNil(t, audit.SubjectID)
	require.Equal(t, "fb-user-1", *audit.SubjectID)
	require.Equal(t, "req-1", audit.RequestID)
}

func TestFromCredentialsRequiresSubject(t *testing.T) {
	t.Parallel()

	_, err := FromCredentials(nil, "req-1")
	require.Error(t, err)

	_, err = FromCredentials(&platformauth.UserCredentials{}, "req-1")
	require.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	audit := System("req-9")
	ctx := IntoContext(context.Background(), audit)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, audit, got)

	_, ok = FromContext(context.Background())
	require.False(t, ok)

	anon := FromContextOrAnonymous(context.Background())
	require.Equal(t, ActorKindAnonymous, anon.ActorKind)
}
