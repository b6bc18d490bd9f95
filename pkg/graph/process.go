package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kiwi-insure/internal/util"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/store"
)

// ProcessResult summarizes one ProcessDocument run.
type ProcessResult struct {
	DocumentID    string
	Chunks        int
	Entities      []common.Entity
	Relationships []common.Relationship
	Skipped       []SkippedUnit
	Write         *store.WriteReport
}

// ProcessDocument chunks text, extracts every unit, merges the entities and
// writes them together with their relationships.
//
// On a GraphWriteError the returned result still describes what was
// extracted and what was written before the failure.
func (g *GraphClient) ProcessDocument(ctx context.Context, documentID, text string) (*ProcessResult, error) {
	units, err := g.chunker.ChunkDocument(documentID, text)
	if err != nil {
		return nil, err
	}
	logger.Info("[Graph] Processing document", "document", documentID, "chunks", len(units))

	res := &ProcessResult{DocumentID: documentID, Chunks: len(units)}
	if len(units) == 0 {
		return res, nil
	}

	report, err := g.extractor.ExtractBatch(ctx, units)
	if err != nil {
		return nil, fmt.Errorf("failed to extract document %s: %w", documentID, err)
	}
	res.Skipped = report.Skipped

	var entities []common.Entity
	var relationships []common.Relationship
	for _, r := range report.Results {
		entities = append(entities, r.Entities...)
		relationships = append(relationships, r.Relationships...)
	}
	res.Entities = MergeEntities(entities)
	res.Relationships = relationships

	res.Write, err = g.writer.StoreInGraph(ctx, res.Entities, res.Relationships)
	if err != nil {
		return res, fmt.Errorf("failed to store document %s: %w", documentID, err)
	}

	logger.Info("[Graph] Processed document",
		"document", documentID,
		"entities", res.Write.Entities,
		"relationships", res.Write.Relationships,
		"dropped", len(res.Write.Dropped),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

// ClaimAnalysis is the outcome of AnalyzeInsuranceClaim. Entities are grouped
// by their role in the claim.
type ClaimAnalysis struct {
	ClaimID       string                `json:"claim_id"`
	Claimants     []common.Entity       `json:"claimants"`
	Locations     []common.Entity       `json:"locations"`
	Risks         []common.Entity       `json:"risks"`
	Coverages     []common.Entity       `json:"coverages"`
	Relationships []common.Relationship `json:"relationships"`
	Write         *store.WriteReport    `json:"-"`
}

// AnalyzeInsuranceClaim extracts the parties of a claim in a single LLM call
// and persists them under a generated claim id.
func (g *GraphClient) AnalyzeInsuranceClaim(ctx context.Context, text string) (*ClaimAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("claim text is empty")
	}
	claimID, err := util.NewID("claim")
	if err != nil {
		return nil, err
	}

	res, err := g.extractor.ExtractFromClaim(ctx, claimID, text)
	if err != nil {
		return nil, fmt.Errorf("failed to analyse claim: %w", err)
	}

	analysis := &ClaimAnalysis{ClaimID: claimID, Relationships: res.Relationships}
	entities := MergeEntities(res.Entities)
	for _, e := range entities {
		switch e.Type {
		case common.EntityPerson:
			analysis.Claimants = append(analysis.Claimants, e)
		case common.EntityLocation:
			analysis.Locations = append(analysis.Locations, e)
		case common.EntityRisk, common.EntityEvent:
			analysis.Risks = append(analysis.Risks, e)
		case common.EntityInsurance, common.EntityProduct:
			analysis.Coverages = append(analysis.Coverages, e)
		}
	}

	analysis.Write, err = g.writer.StoreInGraph(ctx, entities, res.Relationships)
	if err != nil {
		return analysis, fmt.Errorf("failed to store claim %s: %w", claimID, err)
	}
	logger.Info("[Graph] Analysed claim", "claim", claimID,
		"claimants", len(analysis.Claimants), "risks", len(analysis.Risks), "coverages", len(analysis.Coverages))
	return analysis, nil
}

// GetInsuranceRecommendations returns insurance products linked to risks
// near the user's Person node, best first.
func (g *GraphClient) GetInsuranceRecommendations(ctx context.Context, userID string) ([]common.Recommendation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is empty")
	}
	return g.writer.Recommendations(ctx, userID)
}
