package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/alertflow/internal/alerting"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ALERTFLOW_CONFIG", "")
	t.Setenv("ALERTFLOW_DATABASE_DRIVER", "sqlite")
	t.Setenv("ALERTFLOW_DATABASE_PATH", filepath.Join(dir, "alertflow.db"))
	t.Setenv("ALERTFLOW_LOGGING_LEVEL", "error")
	t.Setenv("ALERTFLOW_EVENTBUS_DRIVER", "memory")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestSeed_Idempotent(t *testing.T) {
	isolateEnv(t)
	require.Len(t, alerting.DefaultPolicies("acme"), 4)

	out, err := run(t, "seed", "--tenant", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "created 4 of 4 policies for tenant acme")

	out, err = run(t, "seed", "--tenant", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "created 0 of 4 policies for tenant acme")
}

func TestSeed_FromFile(t *testing.T) {
	dir := isolateEnv(t)
	path := filepath.Join(dir, "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
policies:
  - name: Checkout errors
    enabled: true
    severity: high
    match_all: true
    conditions:
      - field: service_name
        operator: eq
        value: checkout
`), 0o600))

	out, err := run(t, "seed", "--tenant", "acme", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "created 1 of 1 policies")

	_, err = run(t, "seed", "--file", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	dir := isolateEnv(t)
	_, err := run(t, "migrate")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "alertflow.db"))
}

func TestInvalidConfigRejected(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ALERTFLOW_DATABASE_DRIVER", "postgres")
	_, err := run(t, "migrate")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestEmit_RequiresNetworkedBus(t *testing.T) {
	isolateEnv(t)
	_, err := run(t, "emit", "--tenant", "acme", "--event", `{"event_type":"x"}`)
	assert.ErrorContains(t, err, "networked bus")
}

func TestBuildEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		tenant  string
		event   string
		wantErr bool
	}{
		{"object", "acme", `{"event_type":"user_login","attempts":3}`, false},
		{"missing tenant", "", `{}`, true},
		{"not json", "acme", `{nope`, true},
		{"array", "acme", `[1,2]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := buildEnvelope(tt.tenant, tt.event)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			var env map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(payload, &env))
			assert.JSONEq(t, `"acme"`, string(env["tenant_id"]))
			assert.JSONEq(t, tt.event, string(env["event"]))
		})
	}
}
