package service

import (
	"sync"
	"testing"
	"time"

	"RxDash/pkg/util/myjwt"
	"RxDash/pkg/xerr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetToken(t *testing.T) {
	s := NewSessionService(testJWTKey)
	var states []SessionState
	s.Subscribe(func(st SessionState) { states = append(states, st) })

	tok := signedToken(t, "op-1")
	require.NoError(t, s.SetToken("Bearer "+tok))

	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, tok, s.Token())
	assert.Equal(t, "op-1", s.Principal())
	assert.Equal(t, "operator-op-1", s.State().Username)
	require.Len(t, states, 1)
	assert.True(t, states[0].Authenticated)

	// same principal: no transition
	require.NoError(t, s.SetToken(signedToken(t, "op-1")))
	assert.Len(t, states, 1)

	require.NoError(t, s.SetToken(signedToken(t, "op-2")))
	require.Len(t, states, 2)
	assert.Equal(t, "op-2", states[1].Principal)
}

func TestSetToken_Rejected(t *testing.T) {
	s := NewSessionService(testJWTKey)

	assert.Equal(t, xerr.ErrParam, s.SetToken("  "))

	foreign, err := myjwt.GenerateToken("other-key", "rxdash", "op-1", "x", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, xerr.ErrUnauthenticated, s.SetToken(foreign))

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, myjwt.CustomClaims{
		Uuid: "op-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte(testJWTKey))
	require.NoError(t, err)
	err = s.SetToken(signed)
	assert.Equal(t, xerr.Unauthorized, xerr.CodeOf(err))

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Token())
}

func TestSetToken_RejectedWithoutKey(t *testing.T) {
	s := NewSessionService("")
	tok, err := myjwt.GenerateToken("upstream-only", "api", "op-9", "nina", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, xerr.ErrUnauthenticated, s.SetToken(tok))
	assert.False(t, s.IsAuthenticated())
}

func TestLogout(t *testing.T) {
	s := NewSessionService(testJWTKey)
	var states []SessionState
	sub := s.Subscribe(func(st SessionState) { states = append(states, st) })

	s.Logout()
	assert.Empty(t, states, "logout without a session is not a transition")

	require.NoError(t, s.SetToken(signedToken(t, "op-1")))
	s.Logout()
	require.Len(t, states, 2)
	assert.False(t, states[1].Authenticated)
	assert.False(t, s.IsAuthenticated())

	sub.Unsubscribe()
	require.NoError(t, s.SetToken(signedToken(t, "op-1")))
	assert.Len(t, states, 2)
}

func TestSessionExpiresWithClock(t *testing.T) {
	now := time.Now()
	s := newSessionService(testJWTKey, func() time.Time { return now })
	require.NoError(t, s.SetToken(signedToken(t, "op-1")))
	assert.True(t, s.IsAuthenticated())

	now = now.Add(2 * time.Hour)
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Token())
	assert.Empty(t, s.Principal())
}

func TestSessionExpiryNotifiesSubscribers(t *testing.T) {
	s := NewSessionService(testJWTKey)
	var mu sync.Mutex
	var states []SessionState
	s.Subscribe(func(st SessionState) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})

	tok, err := myjwt.GenerateToken(testJWTKey, "rxdash", "op-1", "operator-op-1", 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, s.SetToken(tok))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 2
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.True(t, states[0].Authenticated)
	assert.Equal(t, SessionState{}, states[1])
	mu.Unlock()
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Token())
}

func TestLogoutCancelsExpiry(t *testing.T) {
	s := NewSessionService(testJWTKey)
	var mu sync.Mutex
	var states []SessionState
	s.Subscribe(func(st SessionState) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})

	tok, err := myjwt.GenerateToken(testJWTKey, "rxdash", "op-1", "operator-op-1", 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, s.SetToken(tok))
	s.Logout()
	require.NoError(t, s.SetToken(signedToken(t, "op-1")))

	time.Sleep(2500 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, states, 3)
	assert.True(t, states[2].Authenticated)
	assert.True(t, s.IsAuthenticated())
}

func TestSubscriberPanicIsIsolated(t *testing.T) {
	s := NewSessionService(testJWTKey)
	s.Subscribe(func(SessionState) { panic("boom") })
	var got int
	s.Subscribe(func(SessionState) { got++ })

	require.NoError(t, s.SetToken(signedToken(t, "op-1")))
	assert.Equal(t, 1, got)
}
