package yamlfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
)

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	policy, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if policy.Institution != "VinUni" || len(policy.Topics) != len(domain.DefaultPolicy().Topics) {
		t.Fatalf("expected default policy, got %+v", policy)
	}
}

func TestLoadShortEdition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `
institution: VinUniversity
topics:
  - admissions
  - courses
  - " "
  - campus life
allow_people_questions: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	policy, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if policy.Institution != "VinUniversity" {
		t.Fatalf("unexpected institution: %q", policy.Institution)
	}
	if strings.Join(policy.Topics, ",") != "admissions,courses,campus life" {
		t.Fatalf("unexpected topics: %v", policy.Topics)
	}
	if policy.AllowPeopleQuestions {
		t.Fatalf("expected people questions disabled")
	}
	instruction := policy.Instruction()
	if !strings.Contains(instruction, "admissions, courses, campus life, etc.") {
		t.Fatalf("instruction must list the configured topics: %s", instruction)
	}
	if !strings.Contains(instruction, domain.SentinelDenied) || !strings.Contains(instruction, domain.SentinelNotFound) {
		t.Fatalf("instruction must carry both sentinels")
	}
}

func TestParseExtraTopicsExtendDefault(t *testing.T) {
	policy, err := Parse([]byte("extra_topics: [\"shuttle bus schedule\"]\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	defaults := domain.DefaultPolicy().Topics
	if len(policy.Topics) != len(defaults)+1 || policy.Topics[len(policy.Topics)-1] != "shuttle bus schedule" {
		t.Fatalf("expected default topics plus one, got %d", len(policy.Topics))
	}
	if !policy.AllowPeopleQuestions {
		t.Fatalf("unset flag must keep default")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("topicz: [a]\n"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParseEmptyDocument(t *testing.T) {
	policy, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if policy.Institution != "VinUni" {
		t.Fatalf("expected default policy")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}
