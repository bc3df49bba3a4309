package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/unifictl/internal/unifi/unifitest"
)

const (
	cliUser     = "admin"
	cliPassword = "pw"
)

// setupController starts a fake controller and writes a config file pointing at it.
func setupController(t *testing.T) (*unifitest.Controller, string) {
	t.Helper()
	for _, env := range []string{EnvControllerURL, EnvUsername, EnvPassword, EnvSite} {
		t.Setenv(env, "")
	}

	ctrl := unifitest.NewController(cliUser, cliPassword)
	srv := httptest.NewServer(ctrl.Router)
	t.Cleanup(srv.Close)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &Config{
		Version:       ConfigFormatVersion,
		ControllerURL: srv.URL,
		Username:      cliUser,
		Password:      cliPassword,
		Site:          "default",
		Timeout:       "5s",
	}
	require.NoError(t, cfg.WriteConfig(cfgPath))
	return ctrl, cfgPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReqCommand(t *testing.T) {
	ctrl, cfgPath := setupController(t)

	t.Run("json output", func(t *testing.T) {
		out, err := runCLI(t, "--config", cfgPath, "-j", "req", "/api/s/{site}/stat/sta")
		require.NoError(t, err)
		assert.Contains(t, out, `"hostname": "laptop"`)
		assert.Contains(t, out, `"rc": "ok"`)
	})

	t.Run("field as yaml", func(t *testing.T) {
		out, err := runCLI(t, "--config", cfgPath, "req", "/api/s/{site}/stat/sta", "--field", "data.#.hostname")
		require.NoError(t, err)
		assert.Equal(t, "- laptop\n- phone\n", out)
	})

	t.Run("string field", func(t *testing.T) {
		out, err := runCLI(t, "--config", cfgPath, "req", "/api/s/default/stat/sta", "--field", "data.1.ip")
		require.NoError(t, err)
		assert.Equal(t, "192.168.1.21\n", out)
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := runCLI(t, "--config", cfgPath, "req", "/api/s/default/stat/sta", "--field", "data.0.nope")
		assert.ErrorContains(t, err, "not found")
	})

	t.Run("body from set", func(t *testing.T) {
		out, err := runCLI(t, "--config", cfgPath, "req", "/api/s/{site}/cmd/stamgr",
			"--set", "cmd=kick-sta", "--set", "mac=00:11:22:33:44:55", "--field", "data.0")
		require.NoError(t, err)
		assert.Contains(t, out, "cmd: kick-sta")
		assert.Contains(t, out, "manager: stamgr")
	})

	t.Run("rejected command", func(t *testing.T) {
		_, err := runCLI(t, "--config", cfgPath, "req", "/api/s/default/cmd/devmgr", "-d", `{"mac":"x"}`)
		assert.ErrorContains(t, err, "api.err.InvalidCommand")
	})

	t.Run("unknown site", func(t *testing.T) {
		_, err := runCLI(t, "--config", cfgPath, "req", "/api/s/{site}/stat/sta", "--site", "branch")
		assert.ErrorContains(t, err, "api.err.NoSiteContext")
	})

	t.Run("without login", func(t *testing.T) {
		_, err := runCLI(t, "--config", cfgPath, "req", "/api/self", "--no-login")
		assert.ErrorContains(t, err, "api.err.LoginRequired")
	})

	// Every invocation is a fresh process with a fresh session.
	assert.Equal(t, 7, ctrl.Logins())
}

func TestLoginCommand(t *testing.T) {
	ctrl, cfgPath := setupController(t)

	out, err := runCLI(t, "--config", cfgPath, "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Login successful")

	_, err = runCLI(t, "--config", cfgPath, "login", "--password", "wrong")
	assert.ErrorContains(t, err, "Authentication error")
	user, password := ctrl.LastLogin()
	assert.Equal(t, cliUser, user)
	assert.Equal(t, "wrong", password)

	out, err = runCLI(t, "--config", cfgPath, "-j", "login")
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":1,"meta":{"rc":"ok"}}`, out)
}

func TestLogoutCommand(t *testing.T) {
	ctrl, cfgPath := setupController(t)

	out, err := runCLI(t, "--config", cfgPath, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
	assert.Equal(t, 1, ctrl.Logins())
	assert.Equal(t, 1, ctrl.Logouts())
	assert.Equal(t, 0, ctrl.Sessions())
}

func TestStatusCommand(t *testing.T) {
	ctrl, cfgPath := setupController(t)

	out, err := runCLI(t, "--config", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Server Version: "+unifitest.ServerVersion)
	assert.Contains(t, out, "Up")
	assert.Equal(t, 0, ctrl.Logins())

	out, err = runCLI(t, "--config", cfgPath, "-j", "status", "--wait", "1s")
	require.NoError(t, err)
	assert.Contains(t, out, `"server_version": "`+unifitest.ServerVersion+`"`)
}

func TestStatusCommandUnreachable(t *testing.T) {
	_, cfgPath := setupController(t)
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()
	t.Setenv(EnvControllerURL, url)

	out, err := runCLI(t, "--config", cfgPath, "status")
	assert.ErrorIs(t, err, ErrAlreadyHandled)
	assert.Contains(t, out, "Unable to connect to controller")

	start := time.Now()
	_, err = runCLI(t, "--config", cfgPath, "status", "--wait", "300ms")
	assert.ErrorIs(t, err, ErrAlreadyHandled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestConfigCommands(t *testing.T) {
	for _, env := range []string{EnvControllerURL, EnvUsername, EnvPassword, EnvSite} {
		t.Setenv(env, "")
	}
	dir := t.TempDir()

	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			_, err := runCLI(t, "--config", path, "config", "create",
				"--url", "10.0.0.1:8443", "--username", "admin", "--password", "secret", "--timeout", "10s")
			require.NoError(t, err)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			out, err := runCLI(t, "--config", path, "config", "show")
			require.NoError(t, err)
			assert.Contains(t, out, "Controller: https://10.0.0.1:8443")
			assert.Contains(t, out, "Password: ********")
			assert.Contains(t, out, "Site: default")
			assert.NotContains(t, out, "secret")

			require.NoError(t, LoadConfig(path))
			opts := GetConfig().ClientOptions()
			assert.Equal(t, "https://10.0.0.1:8443", opts.BaseURL)
			assert.Equal(t, "secret", opts.Password)
			assert.Equal(t, 10*time.Second, opts.Timeout)
			assert.True(t, opts.Insecure)
		})
	}

	_, err := runCLI(t, "--config", filepath.Join(dir, "bad.yaml"), "config", "create", "--url", "10.0.0.1:8443", "--timeout", "soon")
	assert.ErrorContains(t, err, "invalid timeout")
}

func TestMissingConfig(t *testing.T) {
	for _, env := range []string{EnvControllerURL, EnvUsername, EnvPassword, EnvSite} {
		t.Setenv(env, "")
	}
	_, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "login")
	assert.ErrorContains(t, err, "config file not found")
}

func TestConfigFromEnvironment(t *testing.T) {
	ctrl, _ := setupController(t)
	srv := httptest.NewServer(ctrl.Router)
	defer srv.Close()
	t.Setenv(EnvControllerURL, srv.URL)
	t.Setenv(EnvUsername, cliUser)
	t.Setenv(EnvPassword, cliPassword)

	out, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "req", "/api/self", "--field", "data.0.name")
	require.NoError(t, err)
	assert.Equal(t, cliUser+"\n", out)
}

func TestBuildBody(t *testing.T) {
	tests := []struct {
		name    string
		opts    reqOptions
		want    string
		wantErr bool
	}{
		{name: "no body", opts: reqOptions{}},
		{name: "data", opts: reqOptions{data: `{"cmd":"restart"}`}, want: `{"cmd":"restart"}`},
		{name: "invalid data", opts: reqOptions{data: `{cmd}`}, wantErr: true},
		{name: "set on empty", opts: reqOptions{set: []string{"cmd=restart", "mac=aa"}}, want: `{"cmd":"restart","mac":"aa"}`},
		{
			name: "set edits data",
			opts: reqOptions{data: `{"cmd":"set-locate"}`, set: []string{"cmd=unset-locate", "settings.enabled=false", "count=3"}},
			want: `{"cmd":"unset-locate","settings":{"enabled":false},"count":3}`,
		},
		{name: "set quoted string", opts: reqOptions{set: []string{`name="007"`}}, want: `{"name":"007"}`},
		{name: "set array", opts: reqOptions{set: []string{`macs=["aa","bb"]`}}, want: `{"macs":["aa","bb"]}`},
		{name: "set without value", opts: reqOptions{set: []string{"cmd"}}, wantErr: true},
		{name: "data and file", opts: reqOptions{data: `{}`, file: "x.json"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := buildBody(&tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, body)
				return
			}
			assert.JSONEq(t, tt.want, string(body))
		})
	}
}

func TestMorphServer(t *testing.T) {
	assert.Equal(t, "https://10.0.0.1:8443", MorphServer("10.0.0.1:8443/"))
	assert.Equal(t, "http://unifi:8080", MorphServer("http://unifi:8080"))
	assert.Equal(t, "", MorphServer(""))
}
