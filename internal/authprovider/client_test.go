package authprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

func TestClientEmitsAuthStateChanges(t *testing.T) {
	f := newFixture(t, nil, nil)
	client := NewClient(f.provider)
	ctx := context.Background()

	var events []EventType
	cancel := client.OnAuthStateChanged(func(_ context.Context, ev AuthEvent) {
		events = append(events, ev.Type)
	})

	cred, err := client.Register(ctx, "anna@example.com", "correct horse", "Anna", enums.PersistenceLocal)
	require.NoError(t, err)
	require.NotNil(t, client.CurrentAccount())
	assert.Equal(t, cred.AccessToken, client.AccessToken())

	other := NewClient(f.provider)
	var restored *Account
	other.OnAuthStateChanged(func(_ context.Context, ev AuthEvent) {
		restored = ev.Account
	})
	_, err = other.Restore(ctx, cred.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, cred.Account.ID, restored.ID)

	require.NoError(t, client.SignOut(ctx))
	assert.Nil(t, client.CurrentAccount())
	assert.Equal(t, []EventType{EventSignedIn, EventSignedOut}, events)

	cancel()
	cancel()
	_, err = client.SignInWithPassword(ctx, "anna@example.com", "correct horse", enums.PersistenceLocal)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestClientFailedSignInKeepsState(t *testing.T) {
	f := newFixture(t, nil, nil)
	client := NewClient(f.provider)

	called := false
	client.OnAuthStateChanged(func(context.Context, AuthEvent) { called = true })

	_, err := client.SignInWithPassword(context.Background(), "ghost@example.com", "whatever1", enums.PersistenceLocal)
	require.Error(t, err)
	assert.False(t, called)
	assert.Nil(t, client.CurrentAccount())
}

func TestClientListenerMayCancelItself(t *testing.T) {
	f := newFixture(t, nil, nil)
	client := NewClient(f.provider)

	calls := 0
	var cancel func()
	cancel = client.OnAuthStateChanged(func(context.Context, AuthEvent) {
		calls++
		cancel()
	})

	require.NoError(t, client.SignOut(context.Background()))
	require.NoError(t, client.SignOut(context.Background()))
	assert.Equal(t, 1, calls)
}
