package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestCLIContract(t *testing.T) {
	cmd := NewRootCmd()
	b := bytes.NewBufferString("")
	cmd.SetOut(b)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	if err != nil {
		t.Fatalf("root command failed: %v", err)
	}

	out := b.String()

	requiredCommands := []string{
		"apply",
		"completion",
		"dry-run",
		"gen",
		"help",
		"report",
		"status",
		"version",
	}

	for _, c := range requiredCommands {
		if !strings.Contains(out, c) {
			t.Errorf("expected top-level command %q in root help", c)
		}
	}
}

func TestCLICommandAliases(t *testing.T) {
	aliases := map[string]string{
		"gen-patches":   "gen",
		"select":        "gen",
		"apply-patches": "apply",
		"apply-dry-run": "dry-run",
		"report-export": "report",
	}

	root := NewRootCmd()
	for alias, want := range aliases {
		cmd, _, err := root.Find([]string{alias})
		if err != nil {
			t.Errorf("alias %q: %v", alias, err)
			continue
		}
		if cmd.Name() != want {
			t.Errorf("alias %q resolved to %q, want %q", alias, cmd.Name(), want)
		}
	}
}

func TestCLICommandApplyHelp(t *testing.T) {
	cmd := NewRootCmd()
	b := bytes.NewBufferString("")
	cmd.SetOut(b)
	cmd.SetArgs([]string{"apply", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("apply help failed: %v", err)
	}

	out := b.String()
	for _, flag := range []string{"--patch-dir", "--branch", "--manifest", "--resume"} {
		if !strings.Contains(out, flag) {
			t.Errorf("expected flag %q in apply help", flag)
		}
	}
}
