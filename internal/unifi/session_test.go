package unifi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	t.Run("successful login returns the controller envelope", func(t *testing.T) {
		client, ctrl, _ := newTestClient(t)
		require.False(t, client.LoggedIn())

		env, err := client.Login(context.Background(), "admin", "pw")
		require.NoError(t, err)
		assert.True(t, env.OK())
		assert.JSONEq(t, okBody, string(env.Raw))
		assert.True(t, client.LoggedIn())
		assert.Equal(t, 1, ctrl.Logins())
		assert.Equal(t, 1, ctrl.Sessions())
	})

	t.Run("login while logged in does not contact the controller", func(t *testing.T) {
		client, ctrl, _ := newTestClient(t)
		_, err := client.Login(context.Background(), "", "")
		require.NoError(t, err)

		env, err := client.Login(context.Background(), "someone", "else")
		require.NoError(t, err)
		assert.Equal(t, ResultOK, env.Meta.RC)
		assert.Equal(t, 1, ctrl.Logins())
	})

	t.Run("empty credentials fall back to the configured ones", func(t *testing.T) {
		client, ctrl, _ := newTestClient(t)
		_, err := client.Login(context.Background(), "", "")
		require.NoError(t, err)
		user, pass := ctrl.LastLogin()
		assert.Equal(t, testUser, user)
		assert.Equal(t, testPassword, pass)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		client, ctrl, _ := newTestClient(t)
		_, err := client.Login(context.Background(), "admin", "wrong")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAuthentication)
		assert.ErrorIs(t, err, ErrServerResponse)

		var authErr *AuthenticationError
		require.ErrorAs(t, err, &authErr)
		require.NotNil(t, authErr.Envelope)
		assert.Equal(t, "api.err.Invalid", authErr.Envelope.Meta.Msg)
		assert.Equal(t, "Authentication error: controller returned 400: api.err.Invalid", err.Error())
		assert.False(t, client.LoggedIn())
		assert.Equal(t, 1, ctrl.Logins())

		// no automatic retry; the next call tries again
		_, err = client.Login(context.Background(), "admin", "pw")
		require.NoError(t, err)
		assert.Equal(t, 2, ctrl.Logins())
	})

	t.Run("non-ok envelope with status 200", func(t *testing.T) {
		client, ctrl, _ := newTestClient(t)
		ctrl.FailLogins(http.StatusOK, `{"meta":{"rc":"error","msg":"api.err.Ubic2faTokenRequired"}}`)

		_, err := client.Login(context.Background(), "", "")
		var authErr *AuthenticationError
		require.ErrorAs(t, err, &authErr)
		assert.Nil(t, authErr.Cause)
		assert.Equal(t, ResultError, authErr.Envelope.Meta.RC)
		assert.Equal(t, "Authentication error: api.err.Ubic2faTokenRequired", err.Error())
		assert.False(t, client.LoggedIn())
	})

	t.Run("malformed login response", func(t *testing.T) {
		client, ctrl, _ := newTestClient(t)
		ctrl.FailLogins(http.StatusOK, `<html>login</html>`)

		_, err := client.Login(context.Background(), "", "")
		var authErr *AuthenticationError
		require.ErrorAs(t, err, &authErr)
		assert.Nil(t, authErr.Envelope)
		assert.Equal(t, "Authentication error", err.Error())
	})

	t.Run("transport failure", func(t *testing.T) {
		client, _, transport := newTestClient(t)
		transport.FailWith(errors.New("dial tcp 127.0.0.1:8443: connection refused"))

		_, err := client.Login(context.Background(), "", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAuthentication)
		assert.ErrorIs(t, err, ErrNoResponse)
		assert.Contains(t, err.Error(), "Authentication error: no response from controller")
		assert.False(t, client.LoggedIn())
	})
}

func TestConcurrentLoginsShareOneExchange(t *testing.T) {
	client, ctrl, _ := newTestClient(t)
	release := ctrl.HoldLogins()
	defer release()

	const callers = 3
	var wg sync.WaitGroup
	envs := make([]*Envelope, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			envs[i], errs[i] = client.Login(context.Background(), "", "")
		}(i)
	}

	require.Eventually(t, func() bool { return ctrl.Logins() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, client.LoggedIn())
	release()
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, envs[i].OK())
	}
	assert.Equal(t, 1, ctrl.Logins())
	assert.True(t, client.LoggedIn())
}

func TestConcurrentLoginFailureReachesEveryWaiter(t *testing.T) {
	client, ctrl, _ := newTestClient(t)
	ctrl.FailLogins(http.StatusBadRequest, `{"meta":{"rc":"error","msg":"api.err.Invalid"},"data":[]}`)
	release := ctrl.HoldLogins()
	defer release()

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.Login(context.Background(), "", "")
		}(i)
	}
	require.Eventually(t, func() bool { return ctrl.Logins() == 1 }, time.Second, time.Millisecond)
	// let the remaining callers join the held exchange
	time.Sleep(50 * time.Millisecond)
	assert.False(t, client.LoggedIn())
	release()
	wg.Wait()

	for i, err := range errs {
		require.Error(t, err, "caller %d", i)
		assert.ErrorIs(t, err, ErrAuthentication)
		var authErr *AuthenticationError
		assert.ErrorAs(t, err, &authErr)
	}
	assert.Equal(t, 1, ctrl.Logins())
	assert.False(t, client.LoggedIn())
}

func TestLoginWaiterCancellation(t *testing.T) {
	client, ctrl, _ := newTestClient(t)
	release := ctrl.HoldLogins()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.Login(ctx, "", "")
		done <- err
	}()
	require.Eventually(t, func() bool { return ctrl.Logins() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrAuthentication)

	// the detached exchange still completes and establishes the session
	release()
	require.Eventually(t, client.LoggedIn, time.Second, time.Millisecond)
	assert.Equal(t, 1, ctrl.Logins())
}

func TestLogout(t *testing.T) {
	t.Run("clears the session", func(t *testing.T) {
		client, ctrl, _ := newTestClient(t)
		_, err := client.Login(context.Background(), "", "")
		require.NoError(t, err)

		body, err := client.Logout(context.Background())
		require.NoError(t, err)
		assert.JSONEq(t, okBody, string(body))
		assert.False(t, client.LoggedIn())
		assert.Equal(t, 1, ctrl.Logouts())
		assert.Equal(t, 0, ctrl.Sessions())

		// the next request logs in again
		_, err = client.Get(context.Background(), "/api/self")
		require.NoError(t, err)
		assert.Equal(t, 2, ctrl.Logins())
	})

	t.Run("failed logout keeps local state", func(t *testing.T) {
		client, _, transport := newTestClient(t)
		_, err := client.Login(context.Background(), "", "")
		require.NoError(t, err)

		transport.FailWith(errors.New("connection reset by peer"))
		_, err = client.Logout(context.Background())
		require.Error(t, err)
		var transportErr *TransportError
		assert.ErrorAs(t, err, &transportErr)
		assert.True(t, client.LoggedIn())
	})

	t.Run("logout is a GET without body", func(t *testing.T) {
		client, st := newScriptedClient(t, scriptedResult{status: http.StatusOK, body: okBody})
		_, err := client.Logout(context.Background())
		require.NoError(t, err)
		require.Len(t, st.exchanges, 1)
		assert.Equal(t, http.MethodGet, st.exchanges[0].Method)
		assert.Equal(t, "/logout", st.exchanges[0].Path)
		assert.Nil(t, st.exchanges[0].Body)
	})
}

func TestInvalidateIgnoresStaleGeneration(t *testing.T) {
	client, _, _ := newTestClient(t)
	_, err := client.Login(context.Background(), "", "")
	require.NoError(t, err)

	gen := client.session.currentGeneration()
	assert.False(t, client.session.invalidate(gen-1))
	assert.True(t, client.LoggedIn())
	assert.True(t, client.session.invalidate(gen))
	assert.False(t, client.LoggedIn())
}
