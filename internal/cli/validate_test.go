package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validModels = `
package models

model: ar2: {
	lags: 2
}

model: ar6: {
	lags: 6
	coefficients: horseshoe: global_scale: 0.5
	scale: half_cauchy: scale: 2
}
`

func writeCUE(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runValidateCmd(t *testing.T, opts *RootOptions, path string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewValidateCommand(opts)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestValidateValidModels(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "models.cue", validModels)

	out, _, err := runValidateCmd(t, &RootOptions{Format: "text"}, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All models valid")
	assert.Contains(t, out, "ar2: AR(2)")
	assert.Contains(t, out, "ar6: AR(6)")
}

func TestValidateSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeCUE(t, dir, "models.cue", validModels)

	out, _, err := runValidateCmd(t, &RootOptions{Format: "text"}, path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All models valid")
}

func TestValidateValidModelsJSON(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "models.cue", validModels)

	out, _, err := runValidateCmd(t, &RootOptions{Format: "json"}, dir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Models, 2)
	assert.Equal(t, "ar2", resp.Data.Models[0].Name)
	assert.Equal(t, 2, resp.Data.Models[0].Lags)
	assert.Len(t, resp.Data.Models[0].Hash, 64)
	assert.NotEqual(t, resp.Data.Models[0].Hash, resp.Data.Models[1].Hash)
}

func TestValidateNonExistentPath(t *testing.T) {
	out, _, err := runValidateCmd(t, &RootOptions{Format: "text"}, "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, _, err := runValidateCmd(t, &RootOptions{Format: "text"}, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
	assert.Contains(t, out, "no CUE files found")
}

func TestValidateSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "lag order below one",
			content: `
package models

model: ar0: lags: 0
`,
			want: "model.ar0",
		},
		{
			name: "non-positive scale",
			content: `
package models

model: ar1: {
	lags: 1
	intercept: scale: -1
}
`,
			want: "model.ar1",
		},
		{
			name: "unknown field",
			content: `
package models

model: ar1: {
	lags: 1
	drift: 0.1
}
`,
			want: "model.ar1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeCUE(t, dir, "bad.cue", tt.content)

			out, _, err := runValidateCmd(t, &RootOptions{Format: "text"}, dir)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, err.Error(), "validation failed")
			assert.Contains(t, out, "✗ Validation failed")
			assert.Contains(t, out, ErrCodeSchema)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestValidateNoModels(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "other.cue", "package models\n\nsettings: workers: 2\n")

	out, _, err := runValidateCmd(t, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNoModels)
}

func TestValidateCollectsEveryError(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", `
package models

model: ok: lags: 2
model: zero: lags: 0
model: negative: {
	lags: 1
	scale: half_cauchy: scale: 0
}
`)

	out, _, err := runValidateCmd(t, &RootOptions{Format: "json"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.Len(t, resp.Data.Errors, 2)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSchema, resp.Error.Code)
}

func TestValidateVerboseOutput(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "models.cue", validModels)

	_, stderr, err := runValidateCmd(t, &RootOptions{Format: "text", Verbose: true}, dir)
	require.NoError(t, err)

	assert.Contains(t, stderr, "Found 1 CUE file(s)")
	assert.Contains(t, stderr, "Validating model: ar2")
	assert.Contains(t, stderr, "Validating model: ar6")
}

func TestResolveModel(t *testing.T) {
	dir := t.TempDir()
	path := writeCUE(t, dir, "models.cue", validModels)

	t.Run("default declaration", func(t *testing.T) {
		decl, err := resolveModel("", "", 3)
		require.NoError(t, err)
		assert.Equal(t, 3, decl.Lags)
	})

	t.Run("named model", func(t *testing.T) {
		decl, err := resolveModel(path, "ar6", 0)
		require.NoError(t, err)
		assert.Equal(t, "ar6", decl.Name)
		assert.Equal(t, 6, decl.Lags)
		assert.Equal(t, 0.5, decl.GlobalScale)
		assert.Equal(t, 2.0, decl.SigmaScale)
	})

	t.Run("ambiguous without name", func(t *testing.T) {
		_, err := resolveModel(path, "", 0)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "--model-name")
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := resolveModel(path, "ar9", 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `model "ar9" not found`)
	})

	t.Run("neither model nor lags", func(t *testing.T) {
		_, err := resolveModel("", "", 0)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}
