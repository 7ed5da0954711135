package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	timeruledomain "streamguard/internal/timerule/domain"
	"streamguard/internal/userpref/domain"
)

func TestExecute_DispatchesWithFlags(t *testing.T) {
	var gotName string
	var gotArgs []string
	root := &Command{
		Name: "guardctl",
		Subcommands: []*Command{{
			Name: "devices",
			Subcommands: []*Command{{
				Name: "list",
				Flags: func() *pflag.FlagSet {
					fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
					fs.String("user", "", "")
					return fs
				},
				Run: func(fs *pflag.FlagSet, args []string) error {
					gotName, _ = fs.GetString("user")
					gotArgs = args
					return nil
				},
			}},
		}},
	}

	require.NoError(t, root.Execute([]string{"devices", "list", "--user", "u1", "extra"}))
	assert.Equal(t, "u1", gotName)
	assert.Equal(t, []string{"extra"}, gotArgs)
}

func TestExecute_UsageErrors(t *testing.T) {
	root := &Command{
		Name: "guardctl",
		Subcommands: []*Command{{
			Name: "rules",
			Subcommands: []*Command{{
				Name:  "delete",
				Flags: func() *pflag.FlagSet { return pflag.NewFlagSet("delete", pflag.ContinueOnError) },
				Run:   func(*pflag.FlagSet, []string) error { return nil },
			}},
		}},
	}

	testCases := []struct {
		name string
		args []string
	}{
		{"no subcommand", []string{}},
		{"unknown command", []string{"nope"}},
		{"flag instead of subcommand", []string{"rules", "--x"}},
		{"unknown flag", []string{"rules", "delete", "--force"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := root.Execute(tc.args)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errUsage), "got %v", err)
		})
	}
}

func TestExecute_HelpNeedsNoDatabase(t *testing.T) {
	root := rootCommand(context.Background(), newApp(&bytes.Buffer{}))
	assert.NoError(t, root.Execute([]string{"--help"}))
	assert.NoError(t, root.Execute([]string{"devices", "grant", "--help"}))
}

func TestExecute_ArgCountCheckedBeforeOpen(t *testing.T) {
	root := rootCommand(context.Background(), newApp(&bytes.Buffer{}))
	err := root.Execute([]string{"devices", "approve"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUsage))

	err = root.Execute([]string{"rules", "list"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUsage), "--user is required")
}

func TestPrintHelp_ListsSubcommands(t *testing.T) {
	var buf bytes.Buffer
	cmd := devicesCommand(context.Background(), newApp(&buf))
	cmd.PrintHelp(&buf)
	for _, name := range []string{"list", "approve", "reject", "delete", "grant", "revoke"} {
		assert.Contains(t, buf.String(), name)
	}
}

func TestParseDay(t *testing.T) {
	testCases := []struct {
		in   string
		want int
		err  bool
	}{
		{"0", 0, false},
		{"6", 6, false},
		{"7", 0, true},
		{"mon", int(time.Monday), false},
		{"Saturday", int(time.Saturday), false},
		{"thurs", int(time.Thursday), false},
		{"tu", 0, true},
		{"monx", 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseDay(tc.in)
			if tc.err {
				assert.ErrorIs(t, err, timeruledomain.ErrInvalidDay)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApplyPrefFlags_OnlyChangedFields(t *testing.T) {
	block := true
	p := &domain.Preference{
		UserID:         "u1",
		DefaultBlock:   &block,
		NetworkPolicy:  domain.NetworkBoth,
		IPAccessPolicy: domain.IPAccessRestricted,
		AllowedIPs:     []string{"10.0.0.1"},
	}
	fs := prefsFlags()
	require.NoError(t, fs.Parse([]string{"--network", "LAN", "--default-block", "inherit"}))
	require.NoError(t, applyPrefFlags(p, fs))

	assert.Equal(t, domain.NetworkLAN, p.NetworkPolicy)
	assert.Nil(t, p.DefaultBlock)
	assert.Equal(t, domain.IPAccessRestricted, p.IPAccessPolicy)
	assert.Equal(t, []string{"10.0.0.1"}, p.AllowedIPs)

	fs = prefsFlags()
	require.NoError(t, fs.Parse([]string{"--default-block", "maybe"}))
	assert.ErrorIs(t, applyPrefFlags(p, fs), errUsage)
}

func TestDisplaySetting_MasksToken(t *testing.T) {
	assert.Equal(t, "********", displaySetting("provider_token", "secret"))
	assert.Equal(t, "", displaySetting("provider_token", ""))
	assert.Equal(t, "10", displaySetting("refresh_interval", "10"))
}
