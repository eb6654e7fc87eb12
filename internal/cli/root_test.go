package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "arflow", cmd.Use)
	assert.Contains(t, cmd.Long, "horseshoe prior")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "simulate", "import", "fit", "diagnose", "forecast", "recover", "study", "list"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestSimulateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	simCmd, _, err := cmd.Find([]string{"simulate"})
	require.NoError(t, err)

	for flag, def := range map[string]string{
		"length":           "500",
		"sigma":            "1",
		"missing-fraction": "0",
		"seed":             "1",
		"name":             "simulated",
		"lags":             "0",
	} {
		f := simCmd.Flags().Lookup(flag)
		require.NotNil(t, f, flag)
		assert.Equal(t, def, f.DefValue, flag)
	}
}

func TestFitCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	fitCmd, _, err := cmd.Find([]string{"fit"})
	require.NoError(t, err)

	for _, flag := range []string{"series", "chains", "draws", "warmup", "seed", "model", "model-name", "lags"} {
		f := fitCmd.Flags().Lookup(flag)
		require.NotNil(t, f, flag)
	}
}

func TestStageCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	tests := []struct {
		command string
		flags   []string
	}{
		{"diagnose", []string{"fit"}},
		{"forecast", []string{"fit", "quantiles", "horizon"}},
		{"recover", []string{"fit", "width"}},
		{"study", []string{"filter"}},
		{"import", []string{"name", "mask-block"}},
		{"list", []string{"series"}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.command})
			require.NoError(t, err)
			for _, flag := range tt.flags {
				assert.NotNil(t, sub.Flags().Lookup(flag), flag)
			}
		})
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "list"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
