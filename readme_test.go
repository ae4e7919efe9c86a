package main

import (
	"os"
	"strings"
	"testing"
)

func TestREADMEDocumentsCommands(t *testing.T) {
	content, err := os.ReadFile("README.md")
	if err != nil {
		t.Fatalf("Failed to read README.md: %v", err)
	}

	readmeText := string(content)

	for _, section := range []string{"## Usage", "## Ledger", "## Configuration"} {
		if !strings.Contains(readmeText, section) {
			t.Errorf("README.md missing %s section", section)
		}
	}

	for _, command := range []string{"init", "run <correlation-id>", "follow", "index", "events"} {
		if !strings.Contains(readmeText, "msgtrack "+command) {
			t.Errorf("README.md missing usage for %q", command)
		}
	}
}

func TestREADMELedgerHeader(t *testing.T) {
	content, err := os.ReadFile("README.md")
	if err != nil {
		t.Fatalf("Failed to read README.md: %v", err)
	}

	const header = "timestamp,subject_id,kind,content,correlation_id,status,error_detail,elapsed_seconds,participant_kind"
	if !strings.Contains(string(content), header) {
		t.Errorf("README.md missing ledger header %q", header)
	}
}
