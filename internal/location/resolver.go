package location

import (
	"math"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xrash/smetrics"
	"go.uber.org/zap"
)

// MatchType says how a place was found in the query
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchAlias    MatchType = "alias"
	MatchFuzzy    MatchType = "fuzzy"
	MatchRegional MatchType = "regional"
)

// Match is one candidate place referenced by a query
type Match struct {
	Name   string    `json:"name"`
	Type   MatchType `json:"type"`
	Kind   EntryType `json:"kind"`
	Score  float64   `json:"score"`
	County string    `json:"county,omitempty"`
	Region string    `json:"region,omitempty"`

	order int
}

// Options tunes the resolver thresholds
type Options struct {
	// FuzzyTolerance is the largest accepted edit distance divided by the longer length
	FuzzyTolerance float64
	// MinTokenLength is the shortest query token compared by edit distance
	MinTokenLength int
	// RegionalScore is given to places reached through a region keyword
	RegionalScore float64
	// AcceptScore is the lowest score GetBestMatch will return
	AcceptScore float64
}

// DefaultOptions returns the production thresholds
func DefaultOptions() Options {
	return Options{
		FuzzyTolerance: 0.3,
		MinTokenLength: 4,
		RegionalScore:  0.9,
		AcceptScore:    0.7,
	}
}

type term struct {
	text    string
	words   int
	entries []int
}

// Resolver maps free text to canonical Kenyan place names.
// It is read-only after construction and safe for concurrent use.
type Resolver struct {
	gazetteer *Gazetteer
	opts      Options
	index     map[string][]int
	terms     []term
	maxWords  int
	byRegion  map[string][]int
	logger    *zap.Logger
	matches   *prometheus.CounterVec
}

// NewResolver builds the term index for g.
// matchesTotal is optional and counts best-match outcomes by match type.
func NewResolver(g *Gazetteer, opts Options, matchesTotal *prometheus.CounterVec, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		gazetteer: g,
		opts:      opts,
		index:     make(map[string][]int),
		byRegion:  make(map[string][]int),
		logger:    logger,
		matches:   matchesTotal,
	}

	for i, e := range g.entries {
		for _, t := range append([]string{e.Name}, e.Aliases...) {
			n := normalize(t)
			if !slices.Contains(r.index[n], i) {
				r.index[n] = append(r.index[n], i)
			}
		}
		if e.Type != TypeRegion && e.Region != "" {
			r.byRegion[e.Region] = append(r.byRegion[e.Region], i)
		}
	}

	r.terms = make([]term, 0, len(r.index))
	for text, entries := range r.index {
		words := strings.Count(text, " ") + 1
		if words > r.maxWords {
			r.maxWords = words
		}
		r.terms = append(r.terms, term{text: text, words: words, entries: entries})
	}
	sort.Slice(r.terms, func(i, j int) bool { return r.terms[i].text < r.terms[j].text })

	return r
}

// Gazetteer returns the dataset the resolver was built from
func (r *Resolver) Gazetteer() *Gazetteer {
	return r.gazetteer
}

// GetBestMatch returns the canonical name of the strongest location in query, or "" if none passes the acceptance score
func (r *Resolver) GetBestMatch(query string) string {
	m, ok := r.Best(query)
	if !ok {
		return ""
	}
	return m.Name
}

// Best is GetBestMatch with the full match details
func (r *Resolver) Best(query string) (Match, bool) {
	matches := r.GetAllMatches(query)
	if len(matches) == 0 || matches[0].Score < r.opts.AcceptScore {
		r.count("none")
		return Match{}, false
	}
	r.count(string(matches[0].Type))
	r.logger.Debug("location resolved",
		zap.String("query", query),
		zap.String("name", matches[0].Name),
		zap.String("match_type", string(matches[0].Type)),
		zap.Float64("score", matches[0].Score),
	)
	return matches[0], true
}

// HasLocationReference reports whether query mentions any known place
func (r *Resolver) HasLocationReference(query string) bool {
	_, ok := r.Best(query)
	return ok
}

// Expand returns the canonical names a whole location term stands for: the
// place it names exactly, by alias or by close spelling, plus every member
// place when that place is a region. A term that only contains a place name
// ("Mombasa Road") expands to nothing.
func (r *Resolver) Expand(term string) []string {
	tokens := strings.Fields(normalize(term))
	if len(tokens) == 0 {
		return nil
	}
	whole := strings.Join(tokens, " ")
	entries, ok := r.index[whole]
	if !ok {
		entries = r.closestTerms(whole, len(tokens))
	}

	var names []string
	seen := make(map[string]bool)
	add := func(idx int) {
		name := r.gazetteer.entries[idx].Name
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, idx := range entries {
		add(idx)
		if e := r.gazetteer.entries[idx]; e.Type == TypeRegion {
			for _, member := range r.byRegion[e.Name] {
				add(member)
			}
		}
	}
	return names
}

// closestTerms returns the entries of the terms nearest to text within the fuzzy tolerance
func (r *Resolver) closestTerms(text string, words int) []int {
	var (
		best      []int
		bestRatio = math.Inf(1)
	)
	for _, t := range r.terms {
		if t.words != words || utf8.RuneCountInString(t.text) < r.opts.MinTokenLength {
			continue
		}
		ratio, ok := r.fuzzyRatio(text, t)
		if !ok || ratio > bestRatio {
			continue
		}
		if ratio < bestRatio {
			bestRatio = ratio
			best = best[:0]
		}
		best = append(best, t.entries...)
	}
	return best
}

// GetAllMatches returns every place found in query, best first.
// Results depend only on query; an empty slice means no location was detected.
func (r *Resolver) GetAllMatches(query string) []Match {
	tokens := strings.Fields(normalize(query))
	if len(tokens) == 0 {
		return []Match{}
	}

	found := make(map[string]Match)
	hits := r.exactHits(tokens)
	covered := make([]bool, len(tokens))
	for _, h := range hits {
		for i := h.start; i < h.end; i++ {
			covered[i] = true
		}
	}

	kept := dropNested(hits)
	for _, h := range kept {
		for _, idx := range h.entries {
			e := r.gazetteer.entries[idx]
			mt := MatchAlias
			if normalize(e.Name) == h.text {
				mt = MatchExact
			}
			r.offer(found, idx, 1.0, mt)
		}
	}

	for _, h := range kept {
		for _, idx := range h.entries {
			e := r.gazetteer.entries[idx]
			if e.Type != TypeRegion {
				continue
			}
			for _, member := range r.byRegion[e.Name] {
				r.offer(found, member, r.opts.RegionalScore, MatchRegional)
			}
		}
	}

	r.fuzzyPass(tokens, covered, found)

	out := make([]Match, 0, len(found))
	for _, m := range found {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].better(out[j]) })
	return out
}

type hit struct {
	text       string
	start, end int
	entries    []int
}

// exactHits finds every gazetteer term that appears as whole words in tokens
func (r *Resolver) exactHits(tokens []string) []hit {
	var hits []hit
	for i := range tokens {
		for k := 1; k <= r.maxWords && i+k <= len(tokens); k++ {
			text := strings.Join(tokens[i:i+k], " ")
			if entries, ok := r.index[text]; ok {
				hits = append(hits, hit{text: text, start: i, end: i + k, entries: entries})
			}
		}
	}
	return hits
}

// dropNested removes hits whose span sits inside a longer hit ("Taveta" in "Taita Taveta")
func dropNested(hits []hit) []hit {
	kept := hits[:0:0]
	for _, h := range hits {
		nested := false
		for _, o := range hits {
			if o.end-o.start > h.end-h.start && o.start <= h.start && h.end <= o.end {
				nested = true
				break
			}
		}
		if !nested {
			kept = append(kept, h)
		}
	}
	return kept
}

// fuzzyPass compares uncovered token windows against every term by Levenshtein distance
func (r *Resolver) fuzzyPass(tokens []string, covered []bool, found map[string]Match) {
	for _, t := range r.terms {
		if utf8.RuneCountInString(t.text) < r.opts.MinTokenLength {
			continue
		}
	windows:
		for i := 0; i+t.words <= len(tokens); i++ {
			for j := i; j < i+t.words; j++ {
				if covered[j] {
					continue windows
				}
			}
			window := strings.Join(tokens[i:i+t.words], " ")
			ratio, ok := r.fuzzyRatio(window, t)
			if !ok {
				continue
			}
			for _, idx := range t.entries {
				r.offer(found, idx, 1-ratio, MatchFuzzy)
			}
		}
	}
}

// fuzzyRatio compares a window of t.words tokens with term t.
// Multi-word terms must also be within tolerance word by word, so
// "mombasa road" is not read as "mombasa island".
func (r *Resolver) fuzzyRatio(window string, t term) (float64, bool) {
	if utf8.RuneCountInString(window) < r.opts.MinTokenLength {
		return 0, false
	}
	if _, stop := r.gazetteer.stopwords[window]; stop && t.words == 1 {
		return 0, false
	}
	ratio, ok := r.withinTolerance(window, t.text)
	if !ok || t.words == 1 {
		return ratio, ok
	}
	got, want := strings.Fields(window), strings.Fields(t.text)
	if len(got) != len(want) {
		return 0, false
	}
	for i := range got {
		if got[i] == want[i] {
			continue
		}
		if _, ok := r.withinTolerance(got[i], want[i]); !ok {
			return 0, false
		}
	}
	return ratio, true
}

// withinTolerance returns the edit distance of a and b over the longer length, both counted in runes
func (r *Resolver) withinTolerance(a, b string) (float64, bool) {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 0, false
	}
	limit := r.opts.FuzzyTolerance + 1e-9
	if float64(abs(la-lb))/float64(longest) > limit {
		return 0, false
	}
	ratio := float64(editDistance(a, b)) / float64(longest)
	if ratio > limit {
		return 0, false
	}
	return ratio, true
}

// editDistance is the Levenshtein distance in runes. smetrics compares bytes,
// so non-ASCII input is first re-encoded with one byte per distinct rune.
func editDistance(a, b string) int {
	if isASCII(a) && isASCII(b) {
		return smetrics.WagnerFischer(a, b, 1, 1, 1)
	}
	codes := make(map[rune]byte)
	encode := func(s string) (string, bool) {
		out := make([]byte, 0, len(s))
		for _, c := range s {
			code, ok := codes[c]
			if !ok {
				if len(codes) > math.MaxUint8 {
					return "", false
				}
				code = byte(len(codes))
				codes[c] = code
			}
			out = append(out, code)
		}
		return string(out), true
	}
	ea, okA := encode(a)
	eb, okB := encode(b)
	if !okA || !okB {
		return smetrics.WagnerFischer(a, b, 1, 1, 1)
	}
	return smetrics.WagnerFischer(ea, eb, 1, 1, 1)
}

// offer records a candidate, keeping the strongest match per canonical name
func (r *Resolver) offer(found map[string]Match, idx int, score float64, mt MatchType) {
	e := r.gazetteer.entries[idx]
	m := Match{
		Name:   e.Name,
		Type:   mt,
		Kind:   e.Type,
		Score:  score,
		County: e.County,
		Region: e.Region,
		order:  idx,
	}
	if cur, ok := found[e.Name]; ok && !m.better(cur) {
		return
	}
	found[e.Name] = m
}

// better orders by score, then the more specific place, then dataset order
func (m Match) better(o Match) bool {
	if m.Score != o.Score {
		return m.Score > o.Score
	}
	if a, b := m.Kind.specificity(), o.Kind.specificity(); a != b {
		return a < b
	}
	return m.order < o.order
}

func (r *Resolver) count(matchType string) {
	if r.matches != nil {
		r.matches.WithLabelValues(matchType).Inc()
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
