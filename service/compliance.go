package service

import (
	"math"
	"strings"
	"time"

	"github.com/chankeypathak/AuditSync-Pro/models"
)

// complianceFramework pairs a framework with the keywords that indicate
// coverage of it in a document
type complianceFramework struct {
	description string
	keywords    []string
}

// complianceFrameworks is the fixed framework set scored for every document
var complianceFrameworks = map[string]complianceFramework{
	"SOX": {
		description: "Sarbanes-Oxley compliance",
		keywords:    []string{"internal control", "material weakness", "significant deficiency", "financial reporting"},
	},
	"COSO": {
		description: "COSO framework adherence",
		keywords:    []string{"control environment", "risk assessment", "control activities", "monitoring"},
	},
	"PCAOB": {
		description: "PCAOB standards compliance",
		keywords:    []string{"audit standard", "audit opinion", "audit evidence", "audit risk"},
	},
	"SEC": {
		description: "SEC reporting requirements",
		keywords:    []string{"disclosure", "financial statement", "filing", "regulation"},
	},
}

// complianceScaleFactor converts keyword frequency to a 0-100 score
const complianceScaleFactor = 1000

// AssessComplianceScores scores the text against each compliance framework
// by keyword frequency. It is deterministic and has no AI dependency, so it
// always produces a result even when collaborators are unreachable.
func AssessComplianceScores(text string, now time.Time) models.ComplianceScores {
	scores := make(models.ComplianceScores, len(complianceFrameworks))
	textLower := strings.ToLower(text)
	wordCount := len(strings.Fields(text))

	for name, fw := range complianceFrameworks {
		scores[name] = models.ComplianceScore{
			Score:       frameworkScore(textLower, wordCount, fw.keywords),
			Description: fw.description,
			AssessedAt:  now,
		}
	}
	return scores
}

// frameworkScore counts keyword occurrences, divides by word count, scales,
// and caps at 100
func frameworkScore(textLower string, wordCount int, keywords []string) float64 {
	if wordCount == 0 {
		return 0
	}

	count := 0
	for _, kw := range keywords {
		count += strings.Count(textLower, kw)
	}

	frequency := float64(count) / float64(wordCount)
	score := math.Min(frequency*complianceScaleFactor, 100)
	return math.Round(score*100) / 100
}
