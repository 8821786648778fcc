package pr

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetOutputAndPrint(t *testing.T) {
	var stdout, stderr bytes.Buffer
	SetOutput(&stdout, &stderr)
	t.Cleanup(func() { SetOutput(nil, nil) })

	Printf("dc=%d\n", 2)
	Println("ok")
	ErrPrintf("failed: %s\n", "boom")

	if got := stdout.String(); got != "dc=2\nok\n" {
		t.Fatalf("stdout = %q", got)
	}
	if got := stderr.String(); got != "failed: boom\n" {
		t.Fatalf("stderr = %q", got)
	}
}

func TestPfIncludesFieldNames(t *testing.T) {
	t.Parallel()

	type sample struct {
		DC     int
		UserID int64
	}
	got := Pf(sample{DC: 4, UserID: 12345})
	if !strings.Contains(got, "DC:") || !strings.Contains(got, "12345") {
		t.Fatalf("Pf() = %q", got)
	}
}

func TestReadLineWithoutInit(t *testing.T) {
	t.Parallel()

	if _, err := ReadLine("> "); err == nil {
		t.Fatalf("ReadLine() without Init must fail")
	}
	SetPrompt("> ")
}
