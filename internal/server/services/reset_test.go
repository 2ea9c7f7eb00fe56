package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestReset_UnknownEmailLooksTheSame(t *testing.T) {
	f := newFixture(t)

	err := f.reset.RequestReset(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.Empty(t, f.notes.sent)
}

func TestRequestReset_HandsTokenToNotifier(t *testing.T) {
	f := newFixture(t)
	f.register(t, "user@example.com", "Secret1!")

	require.NoError(t, f.reset.RequestReset(context.Background(), "USER@example.com"))

	msg := f.notes.last(t)
	assert.Equal(t, "user@example.com", msg.Email)
	assert.NotEmpty(t, msg.Token)
	assert.True(t, strings.HasPrefix(msg.ResetURL, "http://shop.test/reset-password?token="), msg.ResetURL)
	assert.True(t, msg.ExpiresAt.Equal(t0.Add(time.Hour)))

	u, err := f.manager.Users().FindByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, msg.Token, u.ResetTokenHash, "only the hash is stored")
}

func TestRequestReset_NotifierFailureIsNotReported(t *testing.T) {
	f := newFixture(t)
	f.register(t, "user@example.com", "Secret1!")
	f.notes.err = errors.New("smtp down")

	assert.NoError(t, f.reset.RequestReset(context.Background(), "user@example.com"))
}

func TestCompleteReset_ExpiredTokenRejectedAndCleared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "user@example.com", "Secret1!")
	require.NoError(t, f.reset.RequestReset(ctx, "user@example.com"))
	token := f.notes.last(t).Token

	f.clock.Set(t0.Add(61 * time.Minute))
	err := f.reset.CompleteReset(ctx, token, "Newpass1!")
	require.ErrorIs(t, err, common.ErrInvalidOrExpired)

	_, err = f.users.Login(ctx, "user@example.com", "Secret1!")
	require.NoError(t, err, "original password still works")

	// The failed attempt cleared the token, so even an in-window retry fails.
	f.clock.Set(t0.Add(30 * time.Minute))
	require.ErrorIs(t, f.reset.CompleteReset(ctx, token, "Newpass1!"), common.ErrInvalidOrExpired)
}

func TestCompleteReset_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "user@example.com", "Secret1!")
	require.NoError(t, f.reset.RequestReset(ctx, "user@example.com"))
	token := f.notes.last(t).Token

	f.clock.Set(t0.Add(30 * time.Minute))
	require.NoError(t, f.reset.CompleteReset(ctx, token, "Newpass1!"))
	require.ErrorIs(t, f.reset.CompleteReset(ctx, token, "Other1!x"), common.ErrInvalidOrExpired)

	_, err := f.users.Login(ctx, "user@example.com", "Newpass1!")
	require.NoError(t, err)
}

func TestCompleteReset_RevokesAllSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.register(t, "user@example.com", "Secret1!")
	second, err := f.users.Login(ctx, "user@example.com", "Secret1!")
	require.NoError(t, err)

	require.NoError(t, f.reset.RequestReset(ctx, "user@example.com"))
	require.NoError(t, f.reset.CompleteReset(ctx, f.notes.last(t).Token, "Newpass1!"))

	for _, rt := range []string{first.Tokens.RefreshToken, second.Tokens.RefreshToken} {
		_, err := f.users.Refresh(ctx, rt)
		require.ErrorIs(t, err, common.ErrUnknownToken)
	}
}

func TestCompleteReset_ConcurrentConsumption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "user@example.com", "Secret1!")
	require.NoError(t, f.reset.RequestReset(ctx, "user@example.com"))
	token := f.notes.last(t).Token

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.reset.CompleteReset(ctx, token, "Newpass1!"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestCompleteReset_GarbageToken(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.reset.CompleteReset(context.Background(), "nope", "Newpass1!"), common.ErrInvalidOrExpired)
	require.ErrorIs(t, f.reset.CompleteReset(context.Background(), "", "Newpass1!"), common.ErrInvalidOrExpired)
	require.ErrorIs(t, f.reset.CompleteReset(context.Background(), "nope", ""), common.ErrValidation)
}
