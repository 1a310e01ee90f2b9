package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/chankeypathak/AuditSync-Pro/models"
)

// schemaValidator is implemented by each expected response schema so that
// model output is validated before use, never assumed well-formed
type schemaValidator interface {
	ValidateSchema() error
}

const analystSystemPrompt = "You are an expert audit analyst with deep knowledge of SOX compliance and internal controls. Respond with JSON only, no prose."

const extractFindingsPrompt = `Analyze the following audit report and extract key findings.

Report Text:
%s

Extract and categorize:
1. Material weaknesses
2. Significant deficiencies
3. Risk items
4. Compliance issues
5. Recommendations

Return a JSON object with keys "material_weaknesses", "significant_deficiencies",
"risk_items", "compliance_issues" (arrays of {"category", "description",
"severity", "remediation"}) and "recommendations" (array of strings).`

const materialWeaknessPrompt = `Analyze the following audit report text and identify any material weaknesses:

Text:
%s

Identify and categorize:
1. Internal control deficiencies
2. Financial reporting issues
3. Compliance violations
4. Risk management failures

Return a JSON object with key "material_weaknesses": an array of
{"category", "description", "severity", "remediation"} where severity is
one of "high", "medium", "low".`

const riskCategorizationPrompt = `Categorize the risks mentioned in this audit report:

Text:
%s

Categorize risks into: strategic, operational, financial, compliance,
reputational.

Return a JSON object with key "categories": an array of
{"category", "items" (array of strings), "likelihood", "impact"}.`

const compareReportsPrompt = `Compare these two audit reports and identify key differences:

Report A (Source):
%s

Report B (Target):
%s

Provide:
1. Key differences
2. Risk alignment assessment
3. Compliance gaps
4. Recommendations for reconciliation

Return a JSON object with keys "key_differences" (array of strings),
"risk_alignment" (string), "compliance_gaps" (array of strings), and
"recommendations" (array of strings).`

// findingsResponse is the Findings schema expected from the model
type findingsResponse struct {
	models.Findings
}

func (r *findingsResponse) ValidateSchema() error {
	if r.MaterialWeaknesses == nil && r.SignificantDeficiencies == nil &&
		r.RiskItems == nil && r.ComplianceIssues == nil && r.Recommendations == nil {
		return errors.New("none of the expected findings keys are present")
	}
	return nil
}

// materialWeaknessResponse is the material-weakness detection schema
type materialWeaknessResponse struct {
	MaterialWeaknesses []models.Finding `json:"material_weaknesses"`
}

func (r *materialWeaknessResponse) ValidateSchema() error {
	if r.MaterialWeaknesses == nil {
		return errors.New("material_weaknesses key is missing")
	}
	return nil
}

// riskCategoriesResponse is the Risk-categories schema
type riskCategoriesResponse struct {
	Categories models.RiskCategories `json:"categories"`
}

func (r *riskCategoriesResponse) ValidateSchema() error {
	if r.Categories == nil {
		return errors.New("categories key is missing")
	}
	for _, c := range r.Categories {
		if c.Category == "" {
			return errors.New("risk category entry has empty category name")
		}
	}
	return nil
}

// comparisonResponse is the Comparison-result schema
type comparisonResponse struct {
	models.ComparisonResult
}

func (r *comparisonResponse) ValidateSchema() error {
	if r.RiskAlignment == "" && len(r.KeyDifferences) == 0 {
		return errors.New("comparison result carries neither risk_alignment nor key_differences")
	}
	return nil
}

// ExtractFindings extracts structured findings from document text via the
// language model collaborator
func (s *AIService) ExtractFindings(ctx context.Context, text string) (models.Findings, error) {
	prompt := fmt.Sprintf(extractFindingsPrompt, s.NormalizeText(text))

	var resp findingsResponse
	if err := s.completeJSON(ctx, analystSystemPrompt, prompt, 1500, 0.1, &resp); err != nil {
		return models.Findings{}, err
	}
	return resp.Findings, nil
}

// DetectMaterialWeaknesses runs the dedicated material-weakness pass
func (s *AIService) DetectMaterialWeaknesses(ctx context.Context, text string) ([]models.Finding, error) {
	prompt := fmt.Sprintf(materialWeaknessPrompt, s.NormalizeText(text))

	var resp materialWeaknessResponse
	if err := s.completeJSON(ctx, analystSystemPrompt, prompt, 2000, 0.1, &resp); err != nil {
		return nil, err
	}
	return resp.MaterialWeaknesses, nil
}

// CategorizeRisks categorizes the risks mentioned in document text
func (s *AIService) CategorizeRisks(ctx context.Context, text string) (models.RiskCategories, error) {
	prompt := fmt.Sprintf(riskCategorizationPrompt, s.NormalizeText(text))

	var resp riskCategoriesResponse
	if err := s.completeJSON(ctx, analystSystemPrompt, prompt, 2000, 0.1, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// CompareTexts performs one holistic comparison pass over two texts
func (s *AIService) CompareTexts(ctx context.Context, source, target string) (*models.ComparisonResult, error) {
	prompt := fmt.Sprintf(compareReportsPrompt, s.NormalizeText(source), s.NormalizeText(target))

	var resp comparisonResponse
	if err := s.completeJSON(ctx, analystSystemPrompt, prompt, 2000, 0.1, &resp); err != nil {
		return nil, err
	}
	return &resp.ComparisonResult, nil
}
