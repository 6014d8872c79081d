package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"task-tracker/internal/config"
	"task-tracker/internal/models"
	"task-tracker/internal/server"
	"task-tracker/internal/testsupport"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.toml")
	content := `
[server]
environment = "test"

[database]
driver = "sqlite"
sqlite_path = "` + filepath.ToSlash(filepath.Join(dir, "tracker.db")) + `"
auto_migrate = true

[auth]
jwt_secret = "cli-test-secret"
issuer = "tracker-cli"
token_ttl = "1h"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Name"},
		[][]string{{"1", "Alice"}, {"22"}},
		[]columnAlignment{alignRight, alignLeft},
	)

	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "22")
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestMigrateCommand(t *testing.T) {
	path := writeConfig(t)

	out, err := runCommand(t, "--config", path, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date")
}

func TestReportCommands(t *testing.T) {
	path := writeConfig(t)

	out, err := runCommand(t, "-c", path, "report", "busy")
	require.NoError(t, err)
	assert.Contains(t, out, "No employees have tasks in progress")

	cfg, err := config.LoadConfigFile(path)
	require.NoError(t, err)
	pool, err := server.OpenDatabase(cfg)
	require.NoError(t, err)

	alice := testsupport.CreateEmployee(t, pool.DB, "Alice Smith", "Engineer")
	bob := testsupport.CreateEmployee(t, pool.DB, "Bob Jones", "Engineer")
	parent := testsupport.CreateTask(t, pool.DB, testsupport.TaskFixture{Name: "Design schema", Employee: &alice})
	testsupport.CreateTask(t, pool.DB, testsupport.TaskFixture{
		Name:     "Write migrations",
		Parent:   &parent,
		Employee: &alice,
		Status:   models.TaskStatusInProgress,
	})
	_ = bob
	require.NoError(t, pool.Close())

	out, err = runCommand(t, "-c", path, "report", "busy")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice Smith")
	assert.NotContains(t, out, "Bob Jones")

	out, err = runCommand(t, "-c", path, "report", "important")
	require.NoError(t, err)
	assert.Contains(t, out, "Design schema")
	assert.Contains(t, out, "Bob Jones")
}

func TestTokenCommand(t *testing.T) {
	path := writeConfig(t)

	_, err := runCommand(t, "-c", path, "token")
	require.Error(t, err)

	out, err := runCommand(t, "-c", path, "token", "--subject", "ops")
	require.NoError(t, err)

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), &claims, func(*jwt.Token) (interface{}, error) {
		return []byte("cli-test-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "tracker-cli", claims.Issuer)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := runCommand(t, "-c", filepath.Join(t.TempDir(), "missing.toml"), "migrate")
	require.Error(t, err)
}
