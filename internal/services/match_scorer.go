package services

import (
	"regexp"
	"sort"
	"strings"

	"github.com/codyseavey/tcg-tradein/backend/internal/models"
)

// Per-term signal weights
const (
	weightTitleWord      = 0.8
	weightAnyField       = 0.4
	weightTitleSubstring = 0.6
	weightSKU            = 1.0
	weightNumber         = 1.2
	weightVendor         = 0.3

	singleTypeBonus   = 0.5
	sealedTypePenalty = -0.5
)

const (
	DefaultMinScore      = 0.3
	DefaultMaxCandidates = 5
)

var (
	numericTermPattern = regexp.MustCompile(`^\d+[/-]?\d+$`)
	sealedTypeWords    = []string{"sealed", "booster", "pack", "box"}
)

// ScoredCandidate pairs a catalog product with its match score in [0,1]
type ScoredCandidate struct {
	Product models.CatalogProduct
	Score   float64
}

// MatchScorer ranks catalog candidates against the text a customer typed
type MatchScorer struct {
	minScore      float64
	maxCandidates int
}

// NewMatchScorer creates a scorer. Non-positive limits fall back to the defaults.
func NewMatchScorer(minScore float64, maxCandidates int) *MatchScorer {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &MatchScorer{minScore: minScore, maxCandidates: maxCandidates}
}

// Rank scores every candidate and sorts them best first. Equal scores keep
// the order the catalog returned them in.
func (s *MatchScorer) Rank(query string, candidates []models.CatalogProduct) []ScoredCandidate {
	terms := scoreTerms(query)
	ranked := make([]ScoredCandidate, len(candidates))
	for i, p := range candidates {
		ranked[i] = ScoredCandidate{Product: p, Score: scoreProduct(terms, &p)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Shortlist ranks candidates and keeps at most maxCandidates scoring at
// least minScore
func (s *MatchScorer) Shortlist(query string, candidates []models.CatalogProduct) []ScoredCandidate {
	ranked := s.Rank(query, candidates)
	out := make([]ScoredCandidate, 0, s.maxCandidates)
	for _, c := range ranked {
		if c.Score < s.minScore {
			break
		}
		out = append(out, c)
		if len(out) == s.maxCandidates {
			break
		}
	}
	return out
}

// Score returns the match score of a single product
func (s *MatchScorer) Score(query string, product models.CatalogProduct) float64 {
	return scoreProduct(scoreTerms(query), &product)
}

// scoreTerms splits a query into lowercase words, trimming punctuation other
// than '/' and '-' and dropping '#'
func scoreTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.ReplaceAll(w, "#", "")
		w = strings.TrimFunc(w, func(r rune) bool {
			if r == '/' || r == '-' {
				return false
			}
			return !isAlnum(r)
		})
		if w != "" {
			terms = append(terms, w)
		}
	}
	return terms
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127
}

func scoreProduct(terms []string, p *models.CatalogProduct) float64 {
	if len(terms) == 0 {
		return 0
	}

	title := strings.ToLower(p.Title)
	vendor := strings.ToLower(p.Vendor)
	productType := strings.ToLower(p.ProductType)

	skus := make([]string, 0, len(p.Variants))
	variantTitles := make([]string, 0, len(p.Variants))
	for _, v := range p.Variants {
		skus = append(skus, strings.ToLower(v.SKU))
		variantTitles = append(variantTitles, strings.ToLower(v.Title))
	}
	fields := []string{title, vendor, productType, strings.ToLower(strings.Join(p.Tags, " "))}
	fields = append(fields, skus...)
	fields = append(fields, variantTitles...)

	var total float64
	for _, term := range terms {
		inTitle := strings.Contains(title, term)

		if inTitle && wordBoundary(term).MatchString(title) {
			total += weightTitleWord
		}
		if containsAny(fields, term) {
			total += weightAnyField
		}
		if inTitle {
			total += weightTitleSubstring
		}
		if containsAny(skus, term) {
			total += weightSKU
		}
		if numericTermPattern.MatchString(term) &&
			(inTitle || containsAny(skus, term) || containsAny(variantTitles, term)) {
			total += weightNumber
		}
		if vendor != "" && strings.Contains(vendor, term) {
			total += weightVendor
		}
	}

	total += productTypeAdjustment(productType)

	score := total / float64(len(terms))
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

func productTypeAdjustment(productType string) float64 {
	if productType == "" {
		return 0
	}
	if strings.Contains(productType, "single") {
		return singleTypeBonus
	}
	for _, w := range sealedTypeWords {
		if strings.Contains(productType, w) {
			return sealedTypePenalty
		}
	}
	return 0
}

func wordBoundary(term string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^a-z0-9])` + regexp.QuoteMeta(term) + `($|[^a-z0-9])`)
}

func containsAny(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h != "" && strings.Contains(h, needle) {
			return true
		}
	}
	return false
}
