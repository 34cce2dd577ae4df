package export

import (
	"encoding/json"
	"time"

	"github.com/openauditlabs/sentry/internal/schema"
)

// SARIF format structures (SARIF 2.1.0)
// See: https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html

type SarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []SarifRun `json:"runs"`
}

type SarifRun struct {
	Tool        SarifTool         `json:"tool"`
	Results     []SarifResult     `json:"results"`
	Invocations []SarifInvocation `json:"invocations,omitempty"`
}

type SarifTool struct {
	Driver SarifDriver `json:"driver"`
}

type SarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationUri string      `json:"informationUri,omitempty"`
	Rules          []SarifRule `json:"rules,omitempty"`
}

type SarifRule struct {
	ID                   string                       `json:"id"`
	Name                 string                       `json:"name,omitempty"`
	ShortDescription     SarifMessage                 `json:"shortDescription,omitempty"`
	HelpUri              string                       `json:"helpUri,omitempty"`
	DefaultConfiguration *SarifReportingConfiguration `json:"defaultConfiguration,omitempty"`
}

type SarifReportingConfiguration struct {
	Level string `json:"level"`
}

type SarifResult struct {
	RuleID     string                 `json:"ruleId"`
	RuleIndex  int                    `json:"ruleIndex,omitempty"`
	Level      string                 `json:"level"`
	Message    SarifMessage           `json:"message"`
	Locations  []SarifLocation        `json:"locations,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

type SarifMessage struct {
	Text string `json:"text,omitempty"`
}

type SarifLocation struct {
	PhysicalLocation SarifPhysicalLocation `json:"physicalLocation"`
}

type SarifPhysicalLocation struct {
	ArtifactLocation SarifArtifactLocation `json:"artifactLocation"`
	Region           *SarifRegion          `json:"region,omitempty"`
}

type SarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId,omitempty"`
}

type SarifRegion struct {
	StartLine int `json:"startLine,omitempty"`
	EndLine   int `json:"endLine,omitempty"`
}

type SarifInvocation struct {
	ExecutionSuccessful bool   `json:"executionSuccessful"`
	EndTimeUtc          string `json:"endTimeUtc,omitempty"`
}

// SARIFExporter exports results to SARIF format
type SARIFExporter struct {
	toolName    string
	toolVersion string
}

// NewSARIFExporter creates a new SARIF exporter
func NewSARIFExporter() *SARIFExporter {
	return &SARIFExporter{
		toolName:    "sentry",
		toolVersion: "1.0.0",
	}
}

// Export renders a result as a single-run SARIF log. Rules are keyed by SWC
// id where present, finding id otherwise; the run reports unsuccessful
// execution when any tool error was recorded.
func (e *SARIFExporter) Export(result *schema.AnalysisResult) ([]byte, error) {
	ruleMap := make(map[string]int)
	var rules []SarifRule
	for _, f := range result.Findings {
		ruleID := e.getRuleID(f)
		if _, exists := ruleMap[ruleID]; !exists {
			ruleMap[ruleID] = len(rules)
			rules = append(rules, e.buildRule(f))
		}
	}

	var results []SarifResult
	for _, f := range result.Findings {
		results = append(results, e.buildResult(f, ruleMap))
	}

	endTime := time.Now().UTC()
	if result.EndTime != nil {
		endTime = *result.EndTime
	}

	log := SarifLog{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs: []SarifRun{
			{
				Tool: SarifTool{
					Driver: SarifDriver{
						Name:    e.toolName,
						Version: e.toolVersion,
						Rules:   rules,
					},
				},
				Results: results,
				Invocations: []SarifInvocation{
					{
						ExecutionSuccessful: len(result.ToolErrors) == 0,
						EndTimeUtc:          endTime.Format(time.RFC3339),
					},
				},
			},
		},
	}

	return json.MarshalIndent(log, "", "  ")
}

func (e *SARIFExporter) getRuleID(f schema.Finding) string {
	if f.SWCID != "" {
		return f.SWCID
	}
	return f.ID
}

func (e *SARIFExporter) buildRule(f schema.Finding) SarifRule {
	rule := SarifRule{
		ID: e.getRuleID(f),
		ShortDescription: SarifMessage{
			Text: f.Description,
		},
		DefaultConfiguration: &SarifReportingConfiguration{
			Level: e.severityToLevel(f.Severity),
		},
	}
	if f.SWCID != "" {
		rule.HelpUri = "https://swcregistry.io/docs/" + f.SWCID
	}
	return rule
}

func (e *SARIFExporter) buildResult(f schema.Finding, ruleMap map[string]int) SarifResult {
	ruleID := e.getRuleID(f)

	result := SarifResult{
		RuleID:    ruleID,
		RuleIndex: ruleMap[ruleID],
		Level:     e.severityToLevel(f.Severity),
		Message: SarifMessage{
			Text: f.Description,
		},
		Properties: map[string]interface{}{
			"finding_id": f.ID,
			"tool":       f.ToolName,
			"confidence": f.Confidence,
		},
	}

	if f.ConfidenceLevel != "" {
		result.Properties["confidence_level"] = string(f.ConfidenceLevel)
	}
	if len(f.CrossChainImpact) > 0 {
		result.Properties["cross_chain_impact"] = f.CrossChainImpact
	}
	if f.ExplainabilityTrace != nil {
		if score, ok := f.ExplainabilityTrace["risk_score"]; ok {
			result.Properties["risk_score"] = score
		}
	}

	loc := SarifLocation{
		PhysicalLocation: SarifPhysicalLocation{
			ArtifactLocation: SarifArtifactLocation{
				URI:       f.FilePath,
				URIBaseID: "%SRCROOT%",
			},
		},
	}
	if f.LineSpan != nil {
		loc.PhysicalLocation.Region = &SarifRegion{
			StartLine: f.LineSpan.Start,
			EndLine:   f.LineSpan.End,
		}
	}
	result.Locations = []SarifLocation{loc}

	return result
}

func (e *SARIFExporter) severityToLevel(s schema.Severity) string {
	switch s {
	case schema.SeverityCritical, schema.SeverityMajor:
		return "error"
	case schema.SeverityMedium:
		return "warning"
	case schema.SeverityMinor, schema.SeverityInformational:
		return "note"
	default:
		return "none"
	}
}

// ContentType returns the MIME type for SARIF
func (e *SARIFExporter) ContentType() string {
	return "application/sarif+json"
}

// FileExtension returns the file extension for SARIF
func (e *SARIFExporter) FileExtension() string {
	return ".sarif"
}

// FormatName returns the format name
func (e *SARIFExporter) FormatName() string {
	return "sarif"
}
