package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"fit_id": "fit-1"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"fit_id": "fit-1"}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("E005", "model path not found", map[string]string{"path": "x.cue"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E005", resp.Error.Code)
	assert.Equal(t, "model path not found", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("E001", "load failed", map[string]string{"file": "m.cue"}))
			assert.Contains(t, buf.String(), "Error [E001]: load failed")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details:")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("Found %d CUE file(s)", 2)

	assert.Empty(t, out.String())
	assert.Equal(t, "Found 2 CUE file(s)\n", errOut.String())
}

func TestOutputFormatter_VerboseLogDisabled(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	formatter.VerboseLog("Processing %s", "m.cue")

	assert.Empty(t, buf.String())
}

func TestOutputFormatter_PrintfGroupsDigits(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	formatter.Printf("%d draws\n", 12000)

	assert.Equal(t, "12,000 draws\n", buf.String())
}

func TestOutputFormatter_Failure(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}

		err := formatter.Failure(ErrCodeGateUnmet, "gate unmet", map[string]bool{"passed": false})
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, ErrCodeGateUnmet, resp.Error.Code)
		assert.Equal(t, map[string]any{"passed": false}, resp.Data)
	})

	t.Run("text writes nothing", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}

		err := formatter.Failure(ErrCodeGateUnmet, "gate unmet", nil)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Empty(t, buf.String())
	})
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"command error", NewExitError(ExitCommandError, "no fit stored"), ExitCommandError},
		{"wrapped", fmt.Errorf("run: %w", WrapExitError(ExitFailure, "fit failed", errors.New("boom"))), ExitFailure},
		{"plain error", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "no fit stored", NewExitError(ExitCommandError, "no fit stored").Error())

	wrapped := WrapExitError(ExitFailure, "fit failed", errors.New("chain 1 diverged"))
	assert.Equal(t, "fit failed: chain 1 diverged", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "chain 1 diverged")
}
