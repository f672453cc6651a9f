package usecase

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
	bm25MinIDF  = 0.01
)

// LexicalIndex is an in-memory Okapi BM25 index over a materialized corpus.
// It is immutable after construction and safe for concurrent searches.
type LexicalIndex struct {
	docs      []domain.Document
	termFreqs []map[string]int
	docLens   []int
	avgDocLen float64
	idf       map[string]float64
}

func NewLexicalIndex(docs []domain.Document) *LexicalIndex {
	idx := &LexicalIndex{
		docs:      docs,
		termFreqs: make([]map[string]int, len(docs)),
		docLens:   make([]int, len(docs)),
		idf:       make(map[string]float64),
	}

	docFreq := make(map[string]int)
	totalLen := 0
	for i, doc := range docs {
		tokens := tokenizeLexical(doc.Content)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for tok := range tf {
			docFreq[tok]++
		}
		idx.termFreqs[i] = tf
		idx.docLens[i] = len(tokens)
		totalLen += len(tokens)
	}
	if len(docs) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(docs))
	}

	// Terms present in more than half of the corpus get a negative raw idf;
	// they are floored to a fraction of the average idf instead.
	n := float64(len(docs))
	idfSum := 0.0
	negative := make([]string, 0)
	for tok, freq := range docFreq {
		v := math.Log(n-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		idx.idf[tok] = v
		idfSum += v
		if v < 0 {
			negative = append(negative, tok)
		}
	}
	if len(docFreq) > 0 {
		floor := bm25Epsilon * idfSum / float64(len(docFreq))
		if floor <= 0 {
			floor = bm25MinIDF
		}
		for _, tok := range negative {
			idx.idf[tok] = floor
		}
	}
	return idx
}

func (idx *LexicalIndex) Len() int {
	return len(idx.docs)
}

// Search returns up to k documents with a positive BM25 score, best first.
func (idx *LexicalIndex) Search(query string, k int) []domain.Document {
	if k <= 0 || len(idx.docs) == 0 {
		return nil
	}
	queryTokens := tokenizeLexical(query)
	if len(queryTokens) == 0 {
		return nil
	}

	type scored struct {
		pos   int
		score float64
	}
	hits := make([]scored, 0, len(idx.docs))
	for i, tf := range idx.termFreqs {
		score := 0.0
		lenNorm := 1 - bm25B
		if idx.avgDocLen > 0 {
			lenNorm += bm25B * float64(idx.docLens[i]) / idx.avgDocLen
		}
		for _, tok := range queryTokens {
			freq := float64(tf[tok])
			if freq == 0 {
				continue
			}
			score += idx.idf[tok] * freq * (bm25K1 + 1) / (freq + bm25K1*lenNorm)
		}
		if score > 0 && !math.IsNaN(score) && !math.IsInf(score, 0) {
			hits = append(hits, scored{pos: i, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]domain.Document, 0, len(hits))
	for _, h := range hits {
		out = append(out, idx.docs[h.pos].WithScore(h.score))
	}
	return out
}

// tokenizeLexical splits on anything that is not a letter or digit and
// lowercases. Hangul words additionally emit syllable bigrams so that a term
// still matches when a particle is attached ("임대인이" vs "임대인").
func tokenizeLexical(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 32)
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		word := b.String()
		b.Reset()
		out = append(out, word)
		out = append(out, hangulBigrams(word)...)
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()
	return out
}

func hangulBigrams(word string) []string {
	runes := []rune(word)
	if len(runes) < 3 {
		return nil
	}
	for _, r := range runes {
		if !unicode.Is(unicode.Hangul, r) {
			return nil
		}
	}
	grams := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		grams = append(grams, string(runes[i:i+2]))
	}
	return grams
}
