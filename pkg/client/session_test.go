package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSessionAPI counts login/logout calls and lets tests control the
// session it hands out.
type fakeSessionAPI struct {
	logins     atomic.Int64
	logouts    atomic.Int64
	loginDelay time.Duration
	loginErr   error
	logoutErr  error
	validFor   time.Duration

	mu        sync.Mutex
	lastToken string
}

func (f *fakeSessionAPI) login(_ context.Context) (Session, error) {
	if f.loginDelay > 0 {
		time.Sleep(f.loginDelay)
	}
	n := f.logins.Add(1)
	if f.loginErr != nil {
		return Session{}, f.loginErr
	}
	return Session{
		Token:      fmt.Sprintf("token-%d", n),
		ObtainedAt: time.Now(),
		ValidFor:   f.validFor,
	}, nil
}

func (f *fakeSessionAPI) logout(_ context.Context, token string) error {
	f.logouts.Add(1)
	f.mu.Lock()
	f.lastToken = token
	f.mu.Unlock()
	return f.logoutErr
}

func TestSessionManager_Acquire_LogsInOnce(t *testing.T) {
	api := &fakeSessionAPI{}
	m := NewSessionManager(api)
	ctx := context.Background()

	s1, err := m.Acquire(ctx)
	require.NoError(t, err)
	s2, err := m.Acquire(ctx)
	require.NoError(t, err)

	assert.Equal(t, s1.Token, s2.Token)
	assert.Equal(t, int64(1), api.logins.Load())
}

func TestSessionManager_Acquire_SingleFlight(t *testing.T) {
	api := &fakeSessionAPI{loginDelay: 50 * time.Millisecond}
	m := NewSessionManager(api)

	const callers = 10
	tokens := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Acquire(context.Background())
			tokens[i], errs[i] = s.Token, err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), api.logins.Load(), "concurrent acquirers must share one login")
	for _, token := range tokens {
		assert.Equal(t, tokens[0], token)
	}
}

func TestSessionManager_Acquire_LoginError(t *testing.T) {
	api := &fakeSessionAPI{loginErr: errors.New("boom")}
	m := NewSessionManager(api)

	_, err := m.Acquire(context.Background())
	require.Error(t, err)

	// A failed attempt must not poison later ones.
	api.loginErr = nil
	s, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)
}

func TestSessionManager_Invalidate_ForcesRelogin(t *testing.T) {
	api := &fakeSessionAPI{}
	m := NewSessionManager(api)
	ctx := context.Background()

	s1, err := m.Acquire(ctx)
	require.NoError(t, err)

	m.Invalidate(s1.Token)

	s2, err := m.Acquire(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, s1.Token, s2.Token)
	assert.Equal(t, int64(2), api.logins.Load())
}

func TestSessionManager_Invalidate_IgnoresStaleToken(t *testing.T) {
	api := &fakeSessionAPI{}
	m := NewSessionManager(api)
	ctx := context.Background()

	s1, err := m.Acquire(ctx)
	require.NoError(t, err)

	// A slow failure reporting an older token must not discard the
	// session acquired after it.
	m.Invalidate("some-older-token")

	s2, err := m.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, s1.Token, s2.Token)
	assert.Equal(t, int64(1), api.logins.Load())
}

func TestSessionManager_AdvisoryExpiry(t *testing.T) {
	api := &fakeSessionAPI{validFor: 10 * time.Millisecond}
	m := NewSessionManager(api)
	ctx := context.Background()

	_, err := m.Acquire(ctx)
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)

	_, err = m.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), api.logins.Load(), "expired session should trigger re-login")
}

func TestSessionManager_Release_BestEffort(t *testing.T) {
	api := &fakeSessionAPI{logoutErr: errors.New("server unreachable")}
	m := NewSessionManager(api)
	ctx := context.Background()

	s, err := m.Acquire(ctx)
	require.NoError(t, err)

	// Release never surfaces the logout failure.
	m.Release(ctx)
	assert.Equal(t, int64(1), api.logouts.Load())
	api.mu.Lock()
	assert.Equal(t, s.Token, api.lastToken)
	api.mu.Unlock()

	// The session is gone regardless of the logout outcome.
	_, err = m.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), api.logins.Load())
}

func TestSessionManager_Release_NoSession(t *testing.T) {
	api := &fakeSessionAPI{}
	m := NewSessionManager(api)

	m.Release(context.Background())
	assert.Equal(t, int64(0), api.logouts.Load())
}
