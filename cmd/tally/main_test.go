package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	serveradapter "github.com/evanschultz/tally/internal/adapters/server"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/config"
	"github.com/evanschultz/tally/internal/domain"
	"github.com/evanschultz/tally/internal/platform"
	"github.com/xuri/excelize/v2"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("TALLY_DEV_MODE", "false")
	os.Exit(m.Run())
}

// cliHarness runs CLI invocations against one temp database.
type cliHarness struct {
	t       *testing.T
	dir     string
	dbPath  string
	cfgPath string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	tmp := t.TempDir()
	return &cliHarness{
		t:       t,
		dir:     tmp,
		dbPath:  filepath.Join(tmp, "tally.db"),
		cfgPath: filepath.Join(tmp, "missing.toml"),
	}
}

// run executes one command and returns stdout.
func (h *cliHarness) run(args ...string) string {
	h.t.Helper()
	var out strings.Builder
	full := append([]string{"--db", h.dbPath, "--config", h.cfgPath}, args...)
	if err := run(context.Background(), full, &out, io.Discard); err != nil {
		h.t.Fatalf("run(%v) error = %v", args, err)
	}
	return out.String()
}

func (h *cliHarness) runErr(args ...string) error {
	h.t.Helper()
	full := append([]string{"--db", h.dbPath, "--config", h.cfgPath}, args...)
	return run(context.Background(), full, io.Discard, io.Discard)
}

// snapshot exports the database through the CLI and decodes it.
func (h *cliHarness) snapshot() app.Snapshot {
	h.t.Helper()
	raw := h.run("export", "--out", "-")
	var snap app.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		h.t.Fatalf("Unmarshal(snapshot) error = %v", err)
	}
	return snap
}

// TestRunVersion verifies behavior for the covered scenario.
func TestRunVersion(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(--version) error = %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

// TestRunUnknownCommand verifies behavior for the covered scenario.
func TestRunUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"wat"}, io.Discard, io.Discard)
	if err == nil {
		t.Fatal("expected unknown command error")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("unexpected error %v", err)
	}
}

// TestRunPathsCommand verifies behavior for the covered scenario.
func TestRunPathsCommand(t *testing.T) {
	var out strings.Builder
	err := run(context.Background(), []string{"--app", "tallyx", "--dev", "paths"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	output := out.String()
	if !strings.Contains(output, "app: tallyx") {
		t.Fatalf("expected app name in paths output, got %q", output)
	}
	if !strings.Contains(output, "dev_mode: true") {
		t.Fatalf("expected dev mode in paths output, got %q", output)
	}
}

// TestRunExportCommandWritesSnapshot verifies behavior for the covered scenario.
func TestRunExportCommandWritesSnapshot(t *testing.T) {
	h := newCLIHarness(t)
	outPath := filepath.Join(h.dir, "nested", "snapshot.json")
	h.run("export", "--out", outPath)

	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if snap.Version != app.SnapshotVersion {
		t.Fatalf("unexpected snapshot version %q", snap.Version)
	}
	if len(snap.Products) != 0 || len(snap.Sessions) != 0 {
		t.Fatalf("expected empty snapshot, got %#v", snap)
	}
}

// TestRunImportCommandReadsSnapshot verifies behavior for the covered scenario.
func TestRunImportCommandReadsSnapshot(t *testing.T) {
	h := newCLIHarness(t)
	now := time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC)
	snap := app.Snapshot{
		Version:   app.SnapshotVersion,
		Locations: []app.SnapshotLocation{{ID: "loc-1", Name: "Shop", Primary: true, CreatedAt: now, UpdatedAt: now}},
		Products: []app.SnapshotProduct{
			{ID: "p-1", SKU: "SKU-1", Name: "Widget", Quantity: 7, Active: true, CreatedAt: now, UpdatedAt: now},
		},
		Stock: []app.SnapshotStockRecord{{ProductID: "p-1", LocationID: "loc-1", Quantity: 7}},
	}
	content, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent() error = %v", err)
	}
	inPath := filepath.Join(h.dir, "in.json")
	if err := os.WriteFile(inPath, content, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out := h.run("import", "--in", inPath)
	if !strings.Contains(out, "imported 1 product(s)") {
		t.Fatalf("unexpected import output %q", out)
	}
	list := h.run("product", "list")
	if !strings.Contains(list, "SKU-1") || !strings.Contains(list, "Widget") {
		t.Fatalf("expected imported product in list, got %q", list)
	}
	stock := h.run("stock", "list", "loc-1")
	if !strings.Contains(stock, "p-1") {
		t.Fatalf("expected imported stock record, got %q", stock)
	}
}

// TestRunExportToStdoutAndImportErrors verifies behavior for the covered scenario.
func TestRunExportToStdoutAndImportErrors(t *testing.T) {
	h := newCLIHarness(t)
	if out := h.run("export", "--out", "-"); !strings.Contains(out, "\"version\"") {
		t.Fatalf("expected snapshot json on stdout, got %q", out)
	}
	if err := h.runErr("import"); err == nil {
		t.Fatal("expected import error for missing --in")
	}
	badIn := filepath.Join(h.dir, "bad.json")
	if err := os.WriteFile(badIn, []byte("{"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := h.runErr("import", "--in", badIn); err == nil {
		t.Fatal("expected import decode error")
	}
	if err := h.runErr("export", "--format", "pdf"); err == nil {
		t.Fatal("expected unsupported format error")
	}
	if err := h.runErr("export", "--format", "xlsx"); err == nil {
		t.Fatal("expected missing --session error")
	}
}

// TestRunConfigAndDBEnvOverrides verifies behavior for the covered scenario.
func TestRunConfigAndDBEnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "env.db")
	cfgPath := filepath.Join(tmp, "env.toml")
	cfgContent := "[database]\npath = \"/tmp/ignore-me.db\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("TALLY_CONFIG", cfgPath)
	t.Setenv("TALLY_DB_PATH", dbPath)

	err := run(context.Background(), []string{"export", "--out", filepath.Join(tmp, "out.json")}, io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("run(export with env paths) error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db created at env path, stat error %v", err)
	}
}

// TestParseBoolEnv verifies behavior for the covered scenario.
func TestParseBoolEnv(t *testing.T) {
	t.Setenv("TALLY_BOOL_TEST", "true")
	got, ok := parseBoolEnv("TALLY_BOOL_TEST")
	if !ok || !got {
		t.Fatalf("expected true bool env parse, got value=%t ok=%t", got, ok)
	}

	t.Setenv("TALLY_BOOL_TEST", "not-bool")
	if _, ok = parseBoolEnv("TALLY_BOOL_TEST"); ok {
		t.Fatal("expected invalid bool env to return ok=false")
	}

	t.Setenv("TALLY_BOOL_TEST", "")
	if _, ok = parseBoolEnv("TALLY_BOOL_TEST"); ok {
		t.Fatal("expected unset bool env to return ok=false")
	}
}

// TestLoadDotEnvKeepsExistingValues verifies .env values never override the environment.
func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, ".env")
	if err := os.WriteFile(path, []byte("TALLY_DOTENV_A=from-file\nTALLY_DOTENV_B=from-file\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("TALLY_DOTENV_A", "from-env")
	t.Setenv("TALLY_DOTENV_B", "")
	_ = os.Unsetenv("TALLY_DOTENV_B")

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv() error = %v", err)
	}
	if got := os.Getenv("TALLY_DOTENV_A"); got != "from-env" {
		t.Fatalf("expected existing env to win, got %q", got)
	}
	if got := os.Getenv("TALLY_DOTENV_B"); got != "from-file" {
		t.Fatalf("expected .env value, got %q", got)
	}
	if err := loadDotEnv(filepath.Join(tmp, "missing.env")); err != nil {
		t.Fatalf("expected missing .env to be ignored, got %v", err)
	}
}

// TestRunDevModeCreatesWorkspaceLogFile verifies behavior for the covered scenario.
func TestRunDevModeCreatesWorkspaceLogFile(t *testing.T) {
	workspace := t.TempDir()
	t.Chdir(workspace)

	dbPath := filepath.Join(workspace, "tally.db")
	cfgPath := filepath.Join(workspace, "config.toml")
	if err := run(context.Background(), []string{"--dev", "--db", dbPath, "--config", cfgPath, "location", "list"}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	logDir := filepath.Join(workspace, ".tally", "log")
	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	foundLog := false
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".log") {
			foundLog = true
			break
		}
	}
	if !foundLog {
		t.Fatalf("expected at least one .log file in %s, got %v", logDir, entries)
	}
}

// TestRunDevModeFallsBackToPlatformLogDir verifies an empty dev_file.dir uses the per-user log dir.
func TestRunDevModeFallsBackToPlatformLogDir(t *testing.T) {
	workspace := t.TempDir()
	t.Chdir(workspace)
	dataHome := filepath.Join(workspace, "data")
	t.Setenv("HOME", workspace)
	t.Setenv("XDG_DATA_HOME", dataHome)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(workspace, "config"))
	t.Setenv("LOCALAPPDATA", dataHome)

	dbPath := filepath.Join(workspace, "tally.db")
	cfgPath := filepath.Join(workspace, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[logging.dev_file]\nenabled = true\ndir = \"\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := run(context.Background(), []string{"--dev", "--db", dbPath, "--config", cfgPath, "location", "list"}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: "tally", DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	entries, err := os.ReadDir(paths.LogDir)
	if err != nil {
		t.Fatalf("ReadDir(%q) error = %v", paths.LogDir, err)
	}
	if len(entries) == 0 || !strings.HasSuffix(entries[0].Name(), ".log") {
		t.Fatalf("expected a .log file in %s, got %v", paths.LogDir, entries)
	}
	if _, err := os.Stat(filepath.Join(workspace, ".tally", "log")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected no workspace log dir, stat err = %v", err)
	}
}

// TestWorkspaceRootFromUsesNearestMarker verifies behavior for the covered scenario.
func TestWorkspaceRootFromUsesNearestMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "cmd", "tally")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	got := workspaceRootFrom(nested)
	if filepath.Clean(got) != filepath.Clean(root) {
		t.Fatalf("expected workspace root %q, got %q", root, got)
	}
}

// TestDevLogFilePathResolvesAgainstWorkspaceRoot verifies relative log dirs anchor at workspace root.
func TestDevLogFilePathResolvesAgainstWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "cmd", "tally")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	t.Chdir(nested)

	got, err := devLogFilePath(".tally/log", "tally", time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	wantPrefix := filepath.Join(root, ".tally", "log")
	normalize := func(p string) string {
		return strings.TrimPrefix(filepath.Clean(p), "/private")
	}
	if !strings.HasPrefix(normalize(got), normalize(wantPrefix)) {
		t.Fatalf("expected log path under %q, got %q", wantPrefix, got)
	}
	if !strings.HasSuffix(got, "tally-20260222.log") {
		t.Fatalf("expected dated log file name, got %q", got)
	}
}

// TestSanitizeLogFileStem verifies behavior for the covered scenario.
func TestSanitizeLogFileStem(t *testing.T) {
	cases := map[string]string{
		"tally":       "tally",
		"my app/dev":  "my-app-dev",
		"  ":          "tally",
		"/leading":    "leading",
		"c:\\windows": "c--windows",
	}
	for in, want := range cases {
		if got := sanitizeLogFileStem(in); got != want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestRunRejectsInvalidLoggingLevelFromConfig verifies behavior for the covered scenario.
func TestRunRejectsInvalidLoggingLevelFromConfig(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "tally.db")
	cfgPath := filepath.Join(tmp, "tally.toml")
	cfgContent := "[logging]\nlevel = \"verbose\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "location", "list"}, io.Discard, io.Discard)
	if err == nil {
		t.Fatal("expected invalid logging level error")
	}
	if !strings.Contains(err.Error(), "invalid logging.level") {
		t.Fatalf("expected logging level validation error, got %v", err)
	}
}

// TestRuntimeLoggerCanMuteConsoleSink verifies behavior for the covered scenario.
func TestRuntimeLoggerCanMuteConsoleSink(t *testing.T) {
	var console bytes.Buffer
	cfg := config.Default("/tmp/tally.db").Logging

	logger, err := newRuntimeLogger(&console, "tally", false, cfg, func() time.Time {
		return time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)
	})
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}

	logger.Info("before")
	logger.SetConsoleEnabled(false)
	logger.Info("during")
	logger.SetConsoleEnabled(true)
	logger.Info("after")

	out := console.String()
	if !strings.Contains(out, "before") {
		t.Fatalf("expected console log to include 'before', got %q", out)
	}
	if strings.Contains(out, "during") {
		t.Fatalf("expected muted console log to omit 'during', got %q", out)
	}
	if !strings.Contains(out, "after") {
		t.Fatalf("expected console log to include 'after', got %q", out)
	}
}

// TestRunServeUsesConfigAndFlags verifies serve wiring without binding a socket.
func TestRunServeUsesConfigAndFlags(t *testing.T) {
	orig := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = orig })

	var gotCfg serveradapter.Config
	var gotDeps serveradapter.Dependencies
	serveCommandRunner = func(_ context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
		gotCfg = cfg
		gotDeps = deps
		return nil
	}

	h := newCLIHarness(t)
	h.run("serve", "--http", "127.0.0.1:9999")
	if gotCfg.HTTPBind != "127.0.0.1:9999" {
		t.Fatalf("expected http flag override, got %q", gotCfg.HTTPBind)
	}
	if gotCfg.APIEndpoint != "/api/v1" || gotCfg.MCPEndpoint != "/mcp" {
		t.Fatalf("expected config endpoints, got %#v", gotCfg)
	}
	if gotCfg.ServerName != "tally" {
		t.Fatalf("expected default server name, got %q", gotCfg.ServerName)
	}
	if gotDeps.Service == nil || gotDeps.Ready == nil {
		t.Fatalf("expected service and readiness deps, got %#v", gotDeps)
	}

	serveCommandRunner = func(context.Context, serveradapter.Config, serveradapter.Dependencies) error {
		return errors.New("listen failed")
	}
	if err := h.runErr("serve"); err == nil || !strings.Contains(err.Error(), "listen failed") {
		t.Fatalf("expected serve error to propagate, got %v", err)
	}
}

// TestRunCountAndReconcileFlow drives one full count through the CLI.
func TestRunCountAndReconcileFlow(t *testing.T) {
	h := newCLIHarness(t)
	h.run("location", "add", "Shop", "--primary")
	h.run("product", "add", "SKU-1", "Widget", "--min-stock", "5")

	snap := h.snapshot()
	if len(snap.Locations) != 1 || len(snap.Products) != 1 {
		t.Fatalf("expected one location and product, got %#v", snap)
	}
	locationID := snap.Locations[0].ID
	productID := snap.Products[0].ID

	if out := h.run("stock", "set", productID, locationID, "50"); !strings.Contains(out, "stock set to 50") {
		t.Fatalf("unexpected stock set output %q", out)
	}
	if err := h.runErr("stock", "set", productID, locationID, "lots"); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity error, got %v", err)
	}

	if out := h.run("session", "create", "Q1 count", "--location", locationID); !strings.Contains(out, "with 1 item(s)") {
		t.Fatalf("unexpected session create output %q", out)
	}
	snap = h.snapshot()
	if len(snap.Sessions) != 1 || len(snap.Items) != 1 {
		t.Fatalf("expected one session and item, got %#v", snap)
	}
	sessionID := snap.Sessions[0].ID
	itemID := snap.Items[0].ID

	if err := h.runErr("count", itemID, "42"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected draft session count to fail with invalid state, got %v", err)
	}
	if out := h.run("session", "start", sessionID); !strings.Contains(out, "in_progress") {
		t.Fatalf("unexpected start output %q", out)
	}
	if err := h.runErr("count", itemID, "abc"); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected non-numeric quantity error, got %v", err)
	}
	out := h.run("count", itemID, "42", "--actor", "sam")
	if !strings.Contains(out, "variance -8") || !strings.Contains(out, "every item counted") {
		t.Fatalf("unexpected count output %q", out)
	}

	items := h.run("items", sessionID, "--variance", "with")
	if !strings.Contains(items, itemID) {
		t.Fatalf("expected variance item listed, got %q", items)
	}
	if err := h.runErr("items", sessionID, "--status", "bogus"); err == nil {
		t.Fatal("expected unsupported item status error")
	}

	show := h.run("session", "show", sessionID, "--style", "notty")
	if !strings.Contains(show, "Count report: Q1 count") || !strings.Contains(show, "SKU-1") {
		t.Fatalf("unexpected session show output %q", show)
	}

	if out := h.run("reconcile", sessionID); !strings.Contains(out, "Reconciled 1 variance(s)") {
		t.Fatalf("unexpected reconcile output %q", out)
	}
	snap = h.snapshot()
	if snap.Stock[0].Quantity != 42 {
		t.Fatalf("expected stock updated to counted quantity, got %d", snap.Stock[0].Quantity)
	}
	if snap.Products[0].Quantity != 42 {
		t.Fatalf("expected primary location to resync master quantity, got %d", snap.Products[0].Quantity)
	}
	if snap.Items[0].Status != domain.ItemStatusVerified {
		t.Fatalf("expected verified item, got %q", snap.Items[0].Status)
	}

	history := h.run("stock", "history", "--product", productID)
	if !strings.Contains(history, "-8") {
		t.Fatalf("expected reconcile adjustment in history, got %q", history)
	}

	xlsxPath := filepath.Join(h.dir, "report.xlsx")
	h.run("export", "--format", "xlsx", "--session", sessionID, "--out", xlsxPath)
	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	sku, err := f.GetCellValue("Items", "B5")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if sku != "SKU-1" {
		t.Fatalf("expected SKU-1 in first data row, got %q", sku)
	}

	md := h.run("export", "--format", "md", "--session", sessionID, "--out", "-")
	if !strings.HasPrefix(md, "# Count report: Q1 count") {
		t.Fatalf("unexpected markdown export %q", md)
	}

	if err := h.runErr("session", "delete", sessionID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected completed session delete to fail, got %v", err)
	}
	h.run("session", "reopen", sessionID)
	h.run("session", "cancel", sessionID)
	h.run("session", "delete", sessionID)
	if list := h.run("session", "list"); !strings.Contains(list, "no sessions") {
		t.Fatalf("expected empty session list after delete, got %q", list)
	}
}
