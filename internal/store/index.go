package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/openauditlabs/sentry/internal/schema"
)

// FindingIndex is the bleve full-text index over stored findings
type FindingIndex struct {
	index bleve.Index
	path  string
	mu    sync.RWMutex
}

// findingDocument is the indexed projection of a finding
type findingDocument struct {
	RequestID   string `json:"request_id"`
	SWCID       string `json:"swc_id"`
	Severity    string `json:"severity"`
	ToolName    string `json:"tool_name"`
	FilePath    string `json:"file_path"`
	Description string `json:"description"`
}

// SearchResult is one full-text hit over the finding index
type SearchResult struct {
	FindingID string  `json:"finding_id"`
	RequestID string  `json:"request_id"`
	Severity  string  `json:"severity"`
	ToolName  string  `json:"tool_name"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet,omitempty"`
}

// OpenFindingIndex creates or opens the search index under basePath
func OpenFindingIndex(basePath string) (*FindingIndex, error) {
	indexPath := filepath.Join(basePath, ".index")

	index, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create search index: %w", err)
		}
	} else if err != nil {
		// Corrupt index; rebuild it. The database stays authoritative.
		_ = os.RemoveAll(indexPath)
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create search index: %w", err)
		}
	}

	return &FindingIndex{index: index, path: indexPath}, nil
}

// buildIndexMapping creates the bleve mapping for finding documents
func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = "en"

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = "keyword"

	findingMapping := bleve.NewDocumentMapping()
	findingMapping.AddFieldMappingsAt("request_id", keywordFieldMapping)
	findingMapping.AddFieldMappingsAt("swc_id", keywordFieldMapping)
	findingMapping.AddFieldMappingsAt("severity", keywordFieldMapping)
	findingMapping.AddFieldMappingsAt("tool_name", keywordFieldMapping)
	findingMapping.AddFieldMappingsAt("file_path", keywordFieldMapping)
	findingMapping.AddFieldMappingsAt("description", textFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = findingMapping
	indexMapping.DefaultAnalyzer = "en"

	return indexMapping
}

// IndexResult indexes every finding of a result in one batch
func (fi *FindingIndex) IndexResult(result *schema.AnalysisResult) error {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	batch := fi.index.NewBatch()
	for _, f := range result.Findings {
		doc := findingDocument{
			RequestID:   result.RequestID,
			SWCID:       f.SWCID,
			Severity:    string(f.Severity),
			ToolName:    f.ToolName,
			FilePath:    f.FilePath,
			Description: f.Description,
		}
		if err := batch.Index(f.ID, doc); err != nil {
			return fmt.Errorf("failed to index finding %s: %w", f.ID, err)
		}
	}
	return fi.index.Batch(batch)
}

// Delete removes one finding from the index
func (fi *FindingIndex) Delete(findingID string) error {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	return fi.index.Delete(findingID)
}

// Search runs a fuzzy full-text query over indexed findings
func (fi *FindingIndex) Search(query string, limit int) ([]SearchResult, error) {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetFuzziness(1)

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = limit
	searchRequest.Fields = []string{"request_id", "severity", "tool_name", "description"}
	searchRequest.Highlight = bleve.NewHighlight()

	searchResult, err := fi.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		result := SearchResult{
			FindingID: hit.ID,
			Score:     hit.Score,
		}
		if v, ok := hit.Fields["request_id"].(string); ok {
			result.RequestID = v
		}
		if v, ok := hit.Fields["severity"].(string); ok {
			result.Severity = v
		}
		if v, ok := hit.Fields["tool_name"].(string); ok {
			result.ToolName = v
		}
		for _, fragments := range hit.Fragments {
			if len(fragments) > 0 {
				result.Snippet = fragments[0]
				break
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// DocCount returns the number of indexed findings
func (fi *FindingIndex) DocCount() (uint64, error) {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	return fi.index.DocCount()
}

// Close closes the underlying index
func (fi *FindingIndex) Close() error {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	return fi.index.Close()
}
