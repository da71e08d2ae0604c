package nlp

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-ego/gse"
	"github.com/mozillazg/go-pinyin"
)

const (
	userWordFreq = 1000
	placePos     = "ns"
)

// Tokenizer 基于 gse 分词的文本规范化工具，加载后只读
type Tokenizer struct {
	seg       gse.Segmenter
	wordTag   map[string]string // 词 -> 同义词标签
	stopwords Set
	sensitive []string
	places    Set
	pyArgs    pinyin.Args
}

// NewTokenizer 加载词典并注册词表中的词。dictFiles 为空时使用 gse 内置词典。
func NewTokenizer(lex Lexicon, dictFiles ...string) (*Tokenizer, error) {
	t := &Tokenizer{
		wordTag:   make(map[string]string),
		stopwords: NewSet(lex.Stopwords...),
		places:    NewSet(lex.Places...),
	}

	t.seg.SkipLog = true
	if err := t.seg.LoadDict(dictFiles...); err != nil {
		return nil, fmt.Errorf("load segment dict: %w", err)
	}

	for _, w := range lex.UserWords {
		if err := t.seg.AddToken(w, userWordFreq, "n"); err != nil {
			return nil, fmt.Errorf("add user word %q: %w", w, err)
		}
	}

	for _, p := range lex.Places {
		if err := t.seg.AddToken(p, userWordFreq, placePos); err != nil {
			return nil, fmt.Errorf("add place %q: %w", p, err)
		}
	}

	// 标签按字典序注册，同一个词出现在多个标签下时结果稳定
	tags := make([]string, 0, len(lex.Synonyms))
	for tag := range lex.Synonyms {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		for _, w := range lex.Synonyms[tag] {
			if _, exists := t.wordTag[w]; exists {
				continue
			}
			t.wordTag[w] = tag
			if err := t.seg.AddToken(w, userWordFreq, "n"); err != nil {
				return nil, fmt.Errorf("add synonym %q: %w", w, err)
			}
		}
	}

	for _, w := range lex.Sensitive {
		if w = strings.TrimSpace(w); w != "" {
			t.sensitive = append(t.sensitive, w)
		}
	}

	t.pyArgs = pinyin.NewArgs()
	t.pyArgs.Style = pinyin.NORMAL
	t.pyArgs.Fallback = func(r rune, a pinyin.Args) []string {
		return []string{string(r)}
	}

	return t, nil
}

// Cut 分词并去掉空白
func (t *Tokenizer) Cut(text string) []string {
	words := t.seg.Cut(text, true)

	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// SynonymTags 同义词标签集合：词在词表中时取其标签，否则取词本身，停用词被忽略
func (t *Tokenizer) SynonymTags(text string) Set {
	s := make(Set)
	for _, w := range t.Cut(text) {
		if t.stopwords.Contains(w) || isPunct(w) {
			continue
		}
		if tag, ok := t.wordTag[w]; ok {
			s[tag] = struct{}{}
			continue
		}
		s[w] = struct{}{}
	}
	return s
}

// Pinyin 拼音集合：每个词的全拼（不带声调）作为一个元素
func (t *Tokenizer) Pinyin(text string) Set {
	s := make(Set)
	for _, w := range t.Cut(text) {
		if t.stopwords.Contains(w) || isPunct(w) {
			continue
		}
		s[strings.Join(pinyin.LazyConvert(w, &t.pyArgs), "")] = struct{}{}
	}
	return s
}

// Sensitive 是否包含敏感词
func (t *Tokenizer) Sensitive(text string) bool {
	for _, w := range t.sensitive {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// ExtractTag 问题的检索标签：最长的非停用词所对应的同义词标签，等长时取先出现的。
// 机器人名字不参与提取。
func (t *Tokenizer) ExtractTag(text, robotName string) string {
	if robotName != "" {
		text = strings.ReplaceAll(text, robotName, "")
	}

	best, bestLen := "", 0
	for _, w := range t.Cut(text) {
		if t.stopwords.Contains(w) || isPunct(w) {
			continue
		}
		if n := utf8.RuneCountInString(w); n > bestLen {
			best, bestLen = w, n
		}
	}

	if tag, ok := t.wordTag[best]; ok {
		return tag
	}
	return best
}

// ExtractLocation 抽取问题中的第一个地名，没有时返回空串
func (t *Tokenizer) ExtractLocation(text string) string {
	segs := t.seg.Pos(text, true)

	for _, s := range segs {
		if t.places.Contains(s.Text) || strings.HasPrefix(s.Pos, placePos) {
			return s.Text
		}
	}
	return ""
}

func isPunct(w string) bool {
	return strings.Trim(w, "，。？！、；：,.?!;: ") == ""
}
