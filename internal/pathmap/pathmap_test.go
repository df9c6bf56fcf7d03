package pathmap_test

import (
	"testing"

	"github.com/cloudsync/syncd/internal/pathmap"
)

func TestMapWithoutRemoteRoot(t *testing.T) {
	local, remote := pathmap.Map("/home/user/Documents", "", "report.docx")

	if local != "/home/user/Documents/report.docx" {
		t.Fatalf("unexpected local path: %s", local)
	}

	if remote != "Documents/report.docx" {
		t.Fatalf("unexpected remote path: %s", remote)
	}
}

func TestMapWithRemoteRoot(t *testing.T) {
	_, remote := pathmap.Map("/home/user/Documents", "backups", "report.docx")

	if remote != "backups/Documents/report.docx" {
		t.Fatalf("unexpected remote path: %s", remote)
	}
}

func TestMapStripsMyFilesSynonym(t *testing.T) {
	_, remote := pathmap.Map("/home/user/Documents", "my_files", "report.docx")

	if remote != "Documents/report.docx" {
		t.Fatalf("expected my_files prefix stripped, got: %s", remote)
	}
}

func TestStripMyFilesPrefixVariants(t *testing.T) {
	cases := map[string]string{
		"my_files/a/b":     "a/b",
		"./my_files/a/b":   "a/b",
		"other/my_files/c": "other/my_files/c",
	}

	for input, want := range cases {
		if got := pathmap.StripMyFilesPrefix(input); got != want {
			t.Fatalf("StripMyFilesPrefix(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeSegmentNFC(t *testing.T) {
	// "é" as combining sequence (e + U+0301) should normalize to the
	// precomposed form (U+00E9).
	decomposed := "é"
	got := pathmap.NormalizeSegment(decomposed)

	if got != "é" {
		t.Fatalf("expected precomposed e-acute, got %q", got)
	}
}
