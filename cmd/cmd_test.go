package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := strings.Join([]string{
		"database:",
		"  driver: sqlite",
		"  dsn: " + filepath.ToSlash(filepath.Join(dir, "cranesection.sqlite")),
		"cache:",
		"  driver: sqlite",
		"store:",
		"  backend: sqlite",
		"  spreadsheet: Crane Section",
		"attachments:",
		"  backend: local",
		"  local:",
		"    dir: " + filepath.ToSlash(filepath.Join(dir, "uploads")),
		"    base_url: /attachments",
		"",
	}, "\n")
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// runCLI executes the root command. Flag values stick between runs because the
// command tree is shared, so callers pass every flag a run depends on.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		t.Logf("stderr: %s", errOut.String())
	}
	return out.String(), err
}

func TestRosterImportThenShow(t *testing.T) {
	cfg := writeTestConfig(t)
	doc := filepath.Join(t.TempDir(), "week.toml")
	if err := os.WriteFile(doc, []byte("[\"Shift Supervisor\"]\nMonday = \"Ali\"\n\n[Welder]\nSunday = \"Sara\"\n"), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}

	out, err := runCLI(t, "--config", cfg, "roster", "import", doc)
	if err != nil {
		t.Fatalf("roster import error = %v", err)
	}
	if !strings.Contains(out, "roster imported from "+doc) {
		t.Fatalf("roster import output = %q", out)
	}

	out, err = runCLI(t, "--config", cfg, "roster", "show")
	if err != nil {
		t.Fatalf("roster show error = %v", err)
	}
	for _, want := range []string{"Shift Supervisor", "Ali", "Welder", "Sara", "Store Keeper"} {
		if !strings.Contains(out, want) {
			t.Fatalf("roster show output missing %q:\n%s", want, out)
		}
	}

	_, err = runCLI(t, "--config", cfg, "roster", "import", filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("roster import(missing file) error = nil")
	}
}

func TestFollowupAddThenListJSON(t *testing.T) {
	cfg := writeTestConfig(t)
	picture := filepath.Join(t.TempDir(), "leak.png")
	if err := os.WriteFile(picture, []byte("\x89PNG\r\n\x1a\nfake"), 0o644); err != nil {
		t.Fatalf("write picture: %v", err)
	}

	if _, err := runCLI(t, "--config", cfg, "followup", "add",
		"--section", "RTG", "--equipment", "", "--problem", "", "--reported-by", ""); err == nil {
		t.Fatal("followup add(missing fields) error = nil")
	}

	out, err := runCLI(t, "--config", cfg, "followup", "add",
		"--section", "RTG",
		"--equipment", "12",
		"--problem", "Hydraulic leak",
		"--item-codes", "HX-1",
		"--reported-by", "Omar",
		"--status", "Pending",
		"--image", picture,
	)
	if err != nil {
		t.Fatalf("followup add error = %v", err)
	}
	if !strings.Contains(out, "follow-up added:") || !strings.Contains(out, "RTG #12 (Pending)") {
		t.Fatalf("followup add output = %q", out)
	}

	out, err = runCLI(t, "--config", cfg, "followup", "list", "--json", "--status", "")
	if err != nil {
		t.Fatalf("followup list error = %v", err)
	}
	var rows []map[string]string
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode list output: %v\n%s", err, out)
	}
	if len(rows) != 1 {
		t.Fatalf("followup list rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row["section"] != "RTG" || row["equipment"] != "12" || row["problem"] != "Hydraulic leak" ||
		row["reported_by"] != "Omar" || row["status"] != "Pending" || row["item_codes"] != "HX-1" {
		t.Fatalf("followup list row = %v", row)
	}
	if row["timestamp"] == "" {
		t.Fatal("followup list timestamp is empty")
	}
	if !strings.HasPrefix(row["image_url"], "/attachments/") {
		t.Fatalf("image_url = %q, want local attachment url", row["image_url"])
	}

	out, err = runCLI(t, "--config", cfg, "followup", "list", "--json", "--status", "Closed")
	if err != nil {
		t.Fatalf("followup list(Closed) error = %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("followup list(Closed) output = %q, want []", out)
	}
}
