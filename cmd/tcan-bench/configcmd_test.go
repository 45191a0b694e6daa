package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kstaniek/go-tcan-bench/internal/config"
)

func TestRunConfigExample(t *testing.T) {
	var out, errb bytes.Buffer
	if code := runConfig([]string{"-example", "-profile", "teleo"}, &out, &errb); code != 0 {
		t.Fatalf("code=%d stderr=%q", code, errb.String())
	}
	cfg, err := config.Deserialize(out.Bytes())
	if err != nil {
		t.Fatalf("example does not load back: %v\n%s", err, out.String())
	}
	if cfg.TCAN == nil {
		t.Fatalf("example has no tcan bus")
	}
}

func TestRunConfigUnknownProfile(t *testing.T) {
	var out, errb bytes.Buffer
	if code := runConfig([]string{"-example", "-profile", "nope"}, &out, &errb); code != 1 {
		t.Fatalf("code=%d", code)
	}
}

func TestRunConfigOverwritePrompt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	if err := os.WriteFile(path, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	orig := stdin
	t.Cleanup(func() { stdin = orig })

	stdin = strings.NewReader("n\n")
	var out, errb bytes.Buffer
	if code := runConfig([]string{"-example", "-o", path}, &out, &errb); code != 1 {
		t.Fatalf("declined overwrite code=%d", code)
	}
	if b, _ := os.ReadFile(path); string(b) != "keep" {
		t.Fatalf("file overwritten after declining")
	}
	if !strings.Contains(errb.String(), "Aborted") {
		t.Fatalf("stderr=%q", errb.String())
	}

	stdin = strings.NewReader("y\n")
	if code := runConfig([]string{"-example", "-o", path}, &out, &errb); code != 0 {
		t.Fatalf("accepted overwrite code=%d stderr=%q", code, errb.String())
	}
	if _, err := config.Load(path); err != nil {
		t.Fatalf("written file invalid: %v", err)
	}
}

func TestRunConfigForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	if err := os.WriteFile(path, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	orig := stdin
	t.Cleanup(func() { stdin = orig })
	stdin = strings.NewReader("")
	var out, errb bytes.Buffer
	if code := runConfig([]string{"-o", path, "-force"}, &out, &errb); code != 0 {
		t.Fatalf("code=%d stderr=%q", code, errb.String())
	}
	if _, err := config.Load(path); err != nil {
		t.Fatalf("written file invalid: %v", err)
	}
}
