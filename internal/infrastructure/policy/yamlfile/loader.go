// Package yamlfile loads a policy override from a YAML document.
package yamlfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
)

type document struct {
	Institution          string   `yaml:"institution"`
	Topics               []string `yaml:"topics"`
	ExtraTopics          []string `yaml:"extra_topics"`
	AllowPeopleQuestions *bool    `yaml:"allow_people_questions"`
}

// Load reads path and overlays it on domain.DefaultPolicy. An empty path
// returns the default policy.
func Load(path string) (domain.Policy, error) {
	if strings.TrimSpace(path) == "" {
		return domain.DefaultPolicy(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a policy document. Unknown keys are rejected. "topics"
// replaces the default list and "extra_topics" is appended to it.
func Parse(raw []byte) (domain.Policy, error) {
	policy := domain.DefaultPolicy()

	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return policy, nil
		}
		return domain.Policy{}, domain.WrapError(domain.ErrInvalidInput, "parse policy file", err)
	}

	if institution := strings.TrimSpace(doc.Institution); institution != "" {
		policy.Institution = institution
	}
	if len(doc.Topics) > 0 {
		policy.Topics = compact(doc.Topics)
	}
	policy.Topics = append(policy.Topics, compact(doc.ExtraTopics)...)
	if doc.AllowPeopleQuestions != nil {
		policy.AllowPeopleQuestions = *doc.AllowPeopleQuestions
	}
	if len(policy.Topics) == 0 {
		return domain.Policy{}, domain.WrapError(domain.ErrInvalidInput, "parse policy file", fmt.Errorf("topic list is empty"))
	}
	return policy, nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
