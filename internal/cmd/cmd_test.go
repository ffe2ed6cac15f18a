package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/steveyegge/iamsync/internal/config"
	"github.com/steveyegge/iamsync/internal/desired"
	"github.com/steveyegge/iamsync/internal/identity"
	"github.com/steveyegge/iamsync/internal/reconcile"
)

type harness struct {
	t       *testing.T
	dir     string
	outDir  string
	cfgPath string
	svc     *identity.Memory
	built   int
}

// newHarness points every command at a temp directory and an in-memory
// identity service.
func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, key := range []string{config.EnvRegion, config.EnvProfile, config.EnvOutputDir, config.EnvLogLevel} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	h := &harness{
		t:       t,
		dir:     dir,
		outDir:  filepath.Join(dir, "profiles"),
		cfgPath: filepath.Join(dir, "iamsync.toml"),
		svc:     identity.NewMemory("123456789012"),
	}
	if err := os.WriteFile(h.cfgPath, []byte("log_level = \"off\"\nrequests_per_second = 0\n"), 0644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	prev := newService
	newService = func(ctx context.Context, cfg config.Settings) (identity.Service, error) {
		h.built++
		return h.svc, nil
	}
	t.Cleanup(func() {
		newService = prev
		resetFlags(t)
	})
	return h
}

// resetFlags returns rootCmd's persistent flags to their defaults. Flag
// values and their Changed state otherwise carry over between executions.
func resetFlags(t *testing.T) {
	t.Helper()
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if err := f.Value.Set(f.DefValue); err != nil {
			t.Errorf("reset --%s: %v", f.Name, err)
		}
		f.Changed = false
	})
	rootCmd.SetArgs(nil)
}

func (h *harness) template(content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, "users.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		h.t.Fatalf("write template: %v", err)
	}
	return path
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", h.cfgPath, "--output-dir", h.outDir))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUpdate_CreatesUserAndRecordsProfile(t *testing.T) {
	h := newHarness(t)
	path := h.template("Users:\n  - Name: alice\n    Groups: [admins]\n")

	out, err := h.run("update", path)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	for _, want := range []string{"alice: user created", "alice: groups updated"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	pw, reset := h.svc.LoginPassword("alice")
	if len(pw) != 8 || !reset {
		t.Errorf("login profile = (%q, %v), want 8 chars with reset", pw, reset)
	}

	data, err := os.ReadFile(filepath.Join(h.outDir, "alice.csv"))
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	want := "username,password,url\nalice," + pw + ",https://123456789012.signin.aws.amazon.com/console\n"
	if string(data) != want {
		t.Errorf("record = %q, want %q", data, want)
	}
}

func TestUpdate_RerunReportsNoChanges(t *testing.T) {
	h := newHarness(t)
	path := h.template("Users:\n  - Name: alice\n    Groups: [admins]\n")

	if _, err := h.run("update", path); err != nil {
		t.Fatalf("first update: %v", err)
	}
	before := len(h.svc.Calls())

	out, err := h.run("update", path)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if !strings.Contains(out, "alice: No changes.") {
		t.Errorf("output missing no-change line:\n%s", out)
	}

	for _, c := range h.svc.Calls()[before:] {
		switch c.Op {
		case identity.OpCreateLoginProfile, identity.OpTagUser, identity.OpAddUserToGroup, identity.OpRemoveUserFromGroup:
			t.Errorf("unexpected write on rerun: %+v", c)
		}
	}
}

func TestUpdate_MalformedTemplateMakesNoRemoteCalls(t *testing.T) {
	h := newHarness(t)
	path := h.template("Users: alice\n")

	_, err := h.run("update", path)
	if !errors.Is(err, desired.ErrValidation) {
		t.Fatalf("update error = %v, want validation error", err)
	}
	if h.built != 0 {
		t.Errorf("identity service built %d times, want 0", h.built)
	}
	if calls := h.svc.Calls(); len(calls) != 0 {
		t.Errorf("remote calls = %+v, want none", calls)
	}
}

func TestUpdate_FailedUserFailsRun(t *testing.T) {
	h := newHarness(t)
	h.svc.FailOn(identity.OpAddUserToGroup, "bob", errors.New("no such group"))
	path := h.template("Users:\n  - Name: alice\n    Groups: [admins]\n  - Name: bob\n    Groups: [missing]\n  - Name: carol\n")

	out, err := h.run("update", path)
	var runErr *reconcile.RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("update error = %v, want *RunError", err)
	}
	if len(runErr.Failed) != 1 || runErr.Failed[0] != "bob" {
		t.Errorf("failed users = %v, want [bob]", runErr.Failed)
	}
	if !h.svc.Exists("carol") {
		t.Error("carol should still be reconciled after bob failed")
	}
	if !strings.Contains(out, "1 failed") {
		t.Errorf("summary missing failure count:\n%s", out)
	}
}

func TestValidate(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("validate", h.template("Users:\n  - Name: alice\n  - Name: bob\n"))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "2 user(s)") {
		t.Errorf("output = %q, want user count", out)
	}

	_, err = h.run("validate", h.template("Users:\n  - Name: alice\n  - Name: alice\n"))
	if !errors.Is(err, desired.ErrValidation) {
		t.Errorf("duplicate names: error = %v, want validation error", err)
	}
	if h.built != 0 {
		t.Errorf("validate built the identity service")
	}
}

func TestDelete_Placeholder(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("delete", "users.yaml")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if out != "delete: users.yaml\n" {
		t.Errorf("output = %q", out)
	}
	if h.built != 0 || len(h.svc.Calls()) != 0 {
		t.Error("delete must not contact the identity service")
	}
}

func TestProfiles(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("profiles")
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	if !strings.Contains(out, "No profiles recorded") {
		t.Errorf("empty output = %q", out)
	}

	if _, err := h.run("update", h.template("Users:\n  - Name: alice\n  - Name: bob\n")); err != nil {
		t.Fatalf("update: %v", err)
	}

	out, err = h.run("profiles")
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	for _, want := range []string{"alice", "bob.csv"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLoadSettings_FlagsOverrideFile(t *testing.T) {
	h := newHarness(t)
	if err := os.WriteFile(h.cfgPath, []byte("concurrency = 2\nregion = \"eu-west-1\"\nlog_level = \"off\"\n"), 0644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	var got config.Settings
	newService = func(ctx context.Context, cfg config.Settings) (identity.Service, error) {
		got = cfg
		return h.svc, nil
	}

	if _, err := h.run("update", h.template("Users: []\n"), "--concurrency", "3"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want 3", got.Concurrency)
	}
	if got.Region != "eu-west-1" {
		t.Errorf("Region = %q, want eu-west-1", got.Region)
	}
	if got.OutputDir != h.outDir {
		t.Errorf("OutputDir = %q, want %q", got.OutputDir, h.outDir)
	}
}

func TestFlagsDoNotLeakBetweenRuns(t *testing.T) {
	t.Run("sets concurrency", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.run("validate", h.template("Users: []\n"), "--concurrency", "3"); err != nil {
			t.Fatalf("validate: %v", err)
		}
		if flagConcurrency != 3 {
			t.Fatalf("flagConcurrency = %d, want 3", flagConcurrency)
		}
	})

	f := rootCmd.PersistentFlags().Lookup("concurrency")
	if f.Changed || flagConcurrency != 0 {
		t.Errorf("--concurrency after cleanup: changed=%v value=%d, want unchanged 0", f.Changed, flagConcurrency)
	}

	h := newHarness(t)
	var got config.Settings
	newService = func(ctx context.Context, cfg config.Settings) (identity.Service, error) {
		got = cfg
		return h.svc, nil
	}
	if _, err := h.run("update", h.template("Users: []\n")); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Concurrency != config.Default().Concurrency {
		t.Errorf("Concurrency = %d, want default %d", got.Concurrency, config.Default().Concurrency)
	}
}

func TestLogOutcome(t *testing.T) {
	var buf bytes.Buffer
	observe := logOutcome(zerolog.New(&buf))

	observe(reconcile.Outcome{User: "alice", Created: true}, nil)
	observe(reconcile.Outcome{User: "bob", Tagged: true}, errors.New("throttled"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("log lines = %d, want 2:\n%s", len(lines), buf.String())
	}
	for _, want := range []string{`"level":"info"`, `"user":"alice"`, `"created":true`, `"group_changed":false`} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("alice line missing %s: %s", want, lines[0])
		}
	}
	for _, want := range []string{`"level":"warn"`, `"user":"bob"`, `"tagged":true`, `"error":"throttled"`} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("bob line missing %s: %s", want, lines[1])
		}
	}
}
