package store

import (
	"testing"
	"time"

	"github.com/openauditlabs/sentry/internal/config"
	"github.com/openauditlabs/sentry/internal/schema"
)

func setupStore(t *testing.T, indexed bool) *Store {
	t.Helper()

	s, err := Open(config.StoreConfig{Path: t.TempDir(), Indexed: indexed})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleResult(t *testing.T, id string) *schema.AnalysisResult {
	t.Helper()

	req := schema.NewRequest([]string{"contracts/Vault.sol"})
	req.ID = id
	result := schema.NewResult(req)

	f := schema.NewFinding()
	f.Severity = schema.SeverityCritical
	f.ToolName = "slither"
	f.FilePath = "contracts/Vault.sol"
	f.Description = "Reentrancy in withdraw allows draining the vault"
	f.SWCID = "SWC-107"
	result.Findings = append(result.Findings, f)

	g := schema.NewFinding()
	g.Severity = schema.SeverityMinor
	g.ToolName = "mythril"
	g.FilePath = "contracts/Vault.sol"
	g.Description = "Timestamp dependence in lock period check"
	result.Findings = append(result.Findings, g)

	result.Finalize()
	return result
}

func TestSaveAndGetResult(t *testing.T) {
	s := setupStore(t, false)

	saved := sampleResult(t, "req-1")
	if err := s.SaveResult(saved); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	loaded, err := s.GetResult("req-1")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if loaded.RequestID != "req-1" {
		t.Errorf("wrong request id: %s", loaded.RequestID)
	}
	if loaded.TotalFindings != 2 {
		t.Errorf("expected 2 findings, got %d", loaded.TotalFindings)
	}
	if loaded.SeverityDistribution[schema.SeverityCritical] != 1 {
		t.Errorf("severity distribution lost: %v", loaded.SeverityDistribution)
	}
}

func TestGetResultMissing(t *testing.T) {
	s := setupStore(t, false)

	if _, err := s.GetResult("nope"); err == nil {
		t.Error("expected error for unknown request id")
	}
}

func TestSaveResultReplaces(t *testing.T) {
	s := setupStore(t, false)

	result := sampleResult(t, "req-1")
	if err := s.SaveResult(result); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := s.SaveResult(result); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 stored result, got %d", count)
	}

	findings, err := s.FindingsByRequest("req-1")
	if err != nil {
		t.Fatalf("FindingsByRequest failed: %v", err)
	}
	if len(findings) != 2 {
		t.Errorf("expected 2 findings after re-save, got %d", len(findings))
	}
}

func TestListResults(t *testing.T) {
	s := setupStore(t, false)

	first := sampleResult(t, "req-old")
	first.StartTime = time.Now().UTC().Add(-time.Hour)
	if err := s.SaveResult(first); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.SaveResult(sampleResult(t, "req-new")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	summaries, err := s.ListResults(10)
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].RequestID != "req-new" {
		t.Errorf("expected most recent first, got %s", summaries[0].RequestID)
	}
	if len(summaries[0].Targets) != 1 {
		t.Errorf("targets not round-tripped: %v", summaries[0].Targets)
	}
}

func TestFindingsBySeverity(t *testing.T) {
	s := setupStore(t, false)

	if err := s.SaveResult(sampleResult(t, "req-1")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	critical, err := s.FindingsBySeverity(schema.SeverityCritical)
	if err != nil {
		t.Fatalf("FindingsBySeverity failed: %v", err)
	}
	if len(critical) != 1 || critical[0].ToolName != "slither" {
		t.Errorf("wrong critical findings: %v", critical)
	}

	major, err := s.FindingsBySeverity(schema.SeverityMajor)
	if err != nil {
		t.Fatalf("FindingsBySeverity failed: %v", err)
	}
	if len(major) != 0 {
		t.Errorf("expected no major findings, got %d", len(major))
	}
}

func TestDeleteResult(t *testing.T) {
	s := setupStore(t, true)

	if err := s.SaveResult(sampleResult(t, "req-1")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.DeleteResult("req-1"); err != nil {
		t.Fatalf("DeleteResult failed: %v", err)
	}

	if _, err := s.GetResult("req-1"); err == nil {
		t.Error("result not deleted")
	}
	count, err := s.index.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty index after delete, got %d docs", count)
	}
}

func TestSearch(t *testing.T) {
	s := setupStore(t, true)

	if err := s.SaveResult(sampleResult(t, "req-1")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	hits, err := s.Search("reentrancy", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].RequestID != "req-1" || hits[0].ToolName != "slither" {
		t.Errorf("wrong hit: %+v", hits[0])
	}
}

func TestSearchWithoutIndex(t *testing.T) {
	s := setupStore(t, false)

	if _, err := s.Search("anything", 10); err == nil {
		t.Error("expected error when index is disabled")
	}
}
