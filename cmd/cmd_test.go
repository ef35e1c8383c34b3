package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleText = `#F /tmp/sf.dat
#E 1455180875
#D Thu Feb 11 09:54:35 2016
#O0 theta  chi

#S 1  ascan  theta 0 5  10 0.2
#D Thu Feb 11 09:55:20 2016
#P0 0.5 1.5
#N 2
#L theta  det
1 10
2 20
3 30
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.dat")
	if err := os.WriteFile(path, []byte(sampleText), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// runCommand executes the root command with args and captures stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	rootCmd.SetArgs(nil)
	return buf.String(), err
}

func TestTreeCommand(t *testing.T) {
	path := writeSample(t)

	out, err := runCommand(t, "tree", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"/1.1/title",
		"/1.1/start_time",
		"/1.1/measurement/det",
		"/1.1/instrument/positioners/chi",
	} {
		if !strings.Contains(out, want+"\n") {
			t.Errorf("tree output missing %q:\n%s", want, out)
		}
	}
}

func TestTreeCommandDatasetsOnly(t *testing.T) {
	path := writeSample(t)

	out, err := runCommand(t, "tree", "--datasets", path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { treeDatasetsOnly = false }()
	if strings.Contains(out, "/1.1/measurement\n") {
		t.Errorf("groups should be filtered out:\n%s", out)
	}
	if !strings.Contains(out, "/1.1/measurement/det\n") {
		t.Errorf("datasets should be listed:\n%s", out)
	}
}

func TestReadCommandDataset(t *testing.T) {
	path := writeSample(t)

	out, err := runCommand(t, "read", path, "/1.1/measurement/det")
	if err != nil {
		t.Fatal(err)
	}
	if out != "10\n20\n30\n" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestReadCommandGroup(t *testing.T) {
	path := writeSample(t)

	out, err := runCommand(t, "read", path, "/1.1")
	if err != nil {
		t.Fatal(err)
	}
	if out != "title\nstart_time\nmeasurement\ninstrument\n" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestReadCommandJSON(t *testing.T) {
	path := writeSample(t)

	out, err := runCommand(t, "read", "--json", path, "/1.1/title")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { readJSON = false }()
	if !strings.Contains(out, `"1  ascan  theta 0 5  10 0.2"`) {
		t.Errorf("unexpected output: %q", out)
	}
	if !strings.Contains(out, `"dtype":"string"`) {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestReadCommandNotFound(t *testing.T) {
	path := writeSample(t)

	_, err := runCommand(t, "read", path, "/9.9")
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestFindCommand(t *testing.T) {
	path := writeSample(t)

	out, err := runCommand(t, "find", path, "det")
	if err != nil {
		t.Fatal(err)
	}
	if out != "1.1\n" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestFindCommandUnknownName(t *testing.T) {
	path := writeSample(t)

	_, err := runCommand(t, "find", path, "nope")
	if err == nil {
		t.Fatal("expected error for unknown name")
	}
}

func TestExportCommand(t *testing.T) {
	path := writeSample(t)
	dbPath := filepath.Join(t.TempDir(), "out.db")

	_, err := runCommand(t, "export", path, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
}
