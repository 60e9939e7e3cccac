package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseHostnames(t *testing.T) {
	content := "hostnames,first_seen\nevil1.example,2024-01-01\n\nevil2.example,2024-01-02\n,2024-01-03\n  evil3.example ,2024-01-04\n"

	got, err := ParseHostnames(strings.NewReader(content), "hostnames")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Hostname{
		{Line: 2, Name: "evil1.example"},
		{Line: 4, Name: "evil2.example"},
		{Line: 6, Name: "evil3.example"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("hostnames mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHostnames_ColumnNotFirst(t *testing.T) {
	content := "\ufeffid,hostnames\n1,a.example\n2,b.example\n3\n"

	got, err := ParseHostnames(strings.NewReader(content), "hostnames")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a.example" || got[1].Name != "b.example" {
		t.Errorf("unexpected hostnames: %+v", got)
	}
}

func TestParseHostnames_HeaderOnly(t *testing.T) {
	got, err := ParseHostnames(strings.NewReader("hostnames\n"), "hostnames")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no hostnames, got %d", len(got))
	}
}

func TestParseHostnames_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"missing column", "domain\nevil.example\n"},
		{"bad quoting", "hostnames\n\"evil.example\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseHostnames(strings.NewReader(tt.content), "hostnames"); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoadHostnames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "umbrella_import.csv")
	if err := os.WriteFile(path, []byte("hostnames\nevil1.example\nevil2.example\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadHostnames(path, "hostnames")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 hostnames, got %d", len(got))
	}
}

func TestLoadHostnames_MissingFile(t *testing.T) {
	if _, err := LoadHostnames("/nonexistent/umbrella_import.csv", "hostnames"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
