package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/koustreak/classiflow/internal/classification"
	"github.com/koustreak/classiflow/internal/errs"
	"github.com/koustreak/classiflow/internal/issue"
	"github.com/koustreak/classiflow/internal/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFake(t *testing.T) *remotetest.Server {
	t.Helper()
	fake := remotetest.New(t)
	fake.SetMetadataJSON(t, `{
	  "schemas": [{"name": "public", "tables": [
	    {"name": "orders", "columns": [{"name": "email", "type": "text", "nullable": true}]}
	  ]}],
	  "schemaConfigs": [{"name": "public", "tableConfigs": [
	    {"name": "orders", "classificationId": "1-1", "columnConfigs": []}
	  ]}]
	}`)
	fake.SetClassifications(classification.Config{
		Levels: []classification.Level{{ID: "1", Title: "Low"}},
		Classification: map[string]classification.Classification{
			"1":   {ID: "1", Title: "Personal"},
			"1-1": {ID: "1-1", Title: "Contact", LevelID: "1"},
		},
	})
	return fake
}

// run executes the CLI against fake with an isolated config path.
func run(t *testing.T, fake *remotetest.Server, args ...string) (string, error) {
	t.Helper()
	base := []string{
		"--config", filepath.Join(t.TempDir(), "none.yaml"),
		"--api-url", fake.URL,
		"--console-host", "https://console.example.com",
		"--log-level", "disabled",
	}
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(base, args...))
	err := root.Execute()
	return out.String(), err
}

func TestTablesCmd(t *testing.T) {
	out, err := run(t, newFake(t), "tables")
	require.NoError(t, err)
	assert.Contains(t, out, "TABLE")
	assert.Contains(t, out, "1-1 Contact ==== [Low]")
	assert.Contains(t, out, "email")
}

func TestClassificationsCmd_JSON(t *testing.T) {
	out, err := run(t, newFake(t), "classifications", "-o", "json")
	require.NoError(t, err)

	var got []classification.Classification
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "1-1", got[0].ID)
}

func TestClassifyCmd(t *testing.T) {
	fake := newFake(t)

	out, err := run(t, fake, "classify", "--table", "orders", "--column", "email", "--classification", "1-1")
	require.NoError(t, err)
	assert.Contains(t, out, `Successfully updated column "email" classification`)
	assert.Len(t, fake.RequestsFor(remotetest.RoutePatchMetadata), 1)

	fake.Fail(remotetest.RoutePatchMetadata, http.StatusInternalServerError)
	out, err = run(t, fake, "classify", "--table", "orders", "--classification", "")
	require.Error(t, err)
	assert.True(t, errs.IsPatchFailed(err))
	assert.Contains(t, out, "Failed to update table classification")
}

func TestIssueCreateAndStatus(t *testing.T) {
	fake := newFake(t)
	sqlFile := filepath.Join(t.TempDir(), "change.sql")
	require.NoError(t, os.WriteFile(sqlFile, []byte("ALTER TABLE t ADD COLUMN x INT"), 0o644))

	out, err := run(t, fake, "issue", "create", "-o", "json",
		"--project", "projects/sample",
		"--database", "instances/pg/databases/app",
		"--file", sqlFile)
	require.NoError(t, err)

	var res issue.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "https://console.example.com/projects/sample/issues/103", res.Link)

	out, err = run(t, fake, "issue", "status", "projects/sample", res.Issue.UID)
	require.NoError(t, err)
	assert.Equal(t, "OPEN\n", out)
}

func TestIssueCreate_MissingInput(t *testing.T) {
	fake := newFake(t)
	out, err := run(t, fake, "issue", "create", "--project", "projects/sample")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
	assert.Contains(t, out, "Failed to create issue")
	assert.Empty(t, fake.Requests())
}

func TestDatabasesAndCheckCmd(t *testing.T) {
	fake := newFake(t)
	fake.SetAdvices(`{"status":"SUCCESS"}`)

	out, err := run(t, fake, "databases", "projects/sample")
	require.NoError(t, err)
	assert.Contains(t, out, "DATABASE")

	out, err = run(t, fake, "check", "--project", "projects/sample", "--database", "instances/pg/databases/app", "--sql", "SELECT 1")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "SUCCESS"`)
}

func TestRoot_Validation(t *testing.T) {
	fake := newFake(t)

	_, err := run(t, fake, "tables", "-o", "yaml")
	assert.ErrorContains(t, err, "unsupported output format")

	_, err = run(t, fake, "tables", "--api-url", "not-a-url")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestConfigCmd_MasksToken(t *testing.T) {
	t.Setenv("CLASSIFLOW_TOKEN", "very-secret")
	out, err := run(t, newFake(t), "config")
	require.NoError(t, err)
	assert.NotContains(t, out, "very-secret")
	assert.Contains(t, out, "****")
}
