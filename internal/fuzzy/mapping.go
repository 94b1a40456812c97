package fuzzy

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

// analyzerName tokenizes on unicode word boundaries and lowercases.
// No stop words and no stemming: every query word must be matchable.
const analyzerName = "product_text"

// Indexed field names.
const (
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldTags        = "tags"
	fieldVendor      = "vendor"
	fieldProductType = "productType"
)

var searchFields = []string{fieldTitle, fieldDescription, fieldTags, fieldVendor, fieldProductType}

func newIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}
	im.DefaultAnalyzer = analyzerName

	doc := bleve.NewDocumentStaticMapping()
	for _, name := range searchFields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = analyzerName
		fm.Store = false
		fm.IncludeInAll = false
		fm.IncludeTermVectors = false
		doc.AddFieldMappingsAt(name, fm)
	}
	im.DefaultMapping = doc
	im.StoreDynamic = false
	im.IndexDynamic = false

	return im, nil
}
