package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

const defaultMaxExpansionTerms = 3

// LoadVocabulary reads the term tables from path, or the embedded default
// when path is empty.
func LoadVocabulary(path string) (domain.Vocabulary, error) {
	raw := defaultVocabulary
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.Vocabulary{}, fmt.Errorf("read vocabulary %s: %w", path, err)
		}
		raw = data
	}
	return ParseVocabulary(raw)
}

func ParseVocabulary(raw []byte) (domain.Vocabulary, error) {
	var vocab domain.Vocabulary
	if err := yaml.Unmarshal(raw, &vocab); err != nil {
		return domain.Vocabulary{}, domain.WrapError(domain.ErrInvalidInput, "parse vocabulary", err)
	}
	if vocab.MaxExpansionTerms == 0 {
		vocab.MaxExpansionTerms = defaultMaxExpansionTerms
	}
	if err := vocab.Validate(); err != nil {
		return domain.Vocabulary{}, err
	}
	return vocab, nil
}
