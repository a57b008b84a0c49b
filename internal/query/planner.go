package query

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/nakamura-shuta/mcp-bookmark/internal/store"
)

// Boost weights for the per-field disjunction.
const (
	TitleBoost   = 3.0
	URLBoost     = 2.0
	ContentBoost = 1.0
)

// Filters are the optional conjunctive keyword predicates applied
// alongside the text query.
type Filters struct {
	FolderPath string
	Domain     string
}

// Plan builds the bleve query for q and filters. Phrases become
// position-sensitive phrase matchers, words become term matchers, one per
// field of the boosted title/url/content disjunction. An empty query with
// only filters becomes a match-all base with filters applied.
func Plan(q string, filters Filters) query.Query {
	terms := Parse(q)

	var base query.Query
	if len(terms) == 0 {
		base = bleve.NewMatchAllQuery()
	} else {
		base = bleve.NewDisjunctionQuery(buildSubqueries(terms)...)
	}

	filterClauses := buildFilters(filters)
	if len(filterClauses) == 0 {
		return base
	}

	clauses := append([]query.Query{base}, filterClauses...)
	return bleve.NewConjunctionQuery(clauses...)
}

// buildSubqueries builds the title/url/content disjunction from parsed
// terms. Parse never yields empty terms and the bleve constructors never
// fail, so non-empty terms always produce at least one subquery per field.
func buildSubqueries(terms []Term) []query.Query {
	var subqueries []query.Query

	for _, field := range []struct {
		name  string
		boost float64
	}{
		{store.FieldTitle, TitleBoost},
		{store.FieldURL, URLBoost},
		{store.FieldContent, ContentBoost},
	} {
		for _, q := range fieldQueries(field.name, field.boost, terms) {
			subqueries = append(subqueries, q)
		}
	}

	return subqueries
}

// fieldQueries builds one phrase or match query per term for field.
func fieldQueries(field string, boost float64, terms []Term) []query.Query {
	var out []query.Query
	for _, t := range terms {
		switch t.Kind {
		case Phrase:
			pq := bleve.NewMatchPhraseQuery(t.Text)
			pq.SetField(field)
			pq.SetBoost(boost)
			out = append(out, pq)
		default:
			mq := bleve.NewMatchQuery(t.Text)
			mq.SetField(field)
			mq.SetBoost(boost)
			out = append(out, mq)
		}
	}
	return out
}

func buildFilters(filters Filters) []query.Query {
	var clauses []query.Query
	if filters.FolderPath != "" {
		tq := bleve.NewTermQuery(filters.FolderPath)
		tq.SetField(store.FieldFolderPath)
		clauses = append(clauses, tq)
	}
	if filters.Domain != "" {
		tq := bleve.NewTermQuery(filters.Domain)
		tq.SetField(store.FieldDomain)
		clauses = append(clauses, tq)
	}
	return clauses
}
