package nlp

// Set 无序词集合
type Set map[string]struct{}

// NewSet 由词列表构造集合
func NewSet(words ...string) Set {
	s := make(Set, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func (s Set) Contains(w string) bool {
	_, ok := s[w]
	return ok
}

// Jaccard 返回 |a∩b| / |a∪b|，两者都为空时为 0
func Jaccard(a, b Set) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	inter := 0
	for w := range small {
		if large.Contains(w) {
			inter++
		}
	}

	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
