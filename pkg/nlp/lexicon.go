package nlp

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Lexicon 词表：同义词标签、敏感词、停用词、自定义词与地名
type Lexicon struct {
	// Synonyms 标签到同义词的映射，同一标签下的词视为等价
	Synonyms  map[string][]string `yaml:"synonyms"`
	Sensitive []string            `yaml:"sensitive"`
	Stopwords []string            `yaml:"stopwords"`
	UserWords []string            `yaml:"user_words"`
	Places    []string            `yaml:"places"`
}

// LoadLexicon 从 YAML 文件加载词表
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("read lexicon: %w", err)
	}

	return ParseLexicon(data)
}

// ParseLexicon 解析 YAML 词表
func ParseLexicon(data []byte) (Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("parse lexicon: %w", err)
	}

	for tag, words := range lex.Synonyms {
		if tag == "" {
			return Lexicon{}, fmt.Errorf("parse lexicon: empty synonym tag")
		}
		if len(words) == 0 {
			return Lexicon{}, fmt.Errorf("parse lexicon: synonym tag %q has no words", tag)
		}
	}

	return lex, nil
}
