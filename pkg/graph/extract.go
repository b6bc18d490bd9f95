package graph

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kiwi-insure/internal/util"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/ai"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// ExtractionWindow is the number of units extracted concurrently. The next
// window starts only after every call of the current one has returned.
const ExtractionWindow = 5

// DefaultConfidence is assigned when the model omits a confidence.
const DefaultConfidence = 0.8

// FailurePolicy decides what a batch does when one unit's response cannot
// be parsed. Transport errors always abort.
type FailurePolicy int

const (
	// FailSkip logs the unit, records it in BatchReport.Skipped and continues.
	FailSkip FailurePolicy = iota
	// FailAbort fails the batch on the first parse error.
	FailAbort
)

// ParseFailurePolicy maps "skip" or "abort" onto a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return FailSkip, nil
	case "abort":
		return FailAbort, nil
	default:
		return FailSkip, fmt.Errorf("unknown failure policy %q", s)
	}
}

func (p FailurePolicy) String() string {
	if p == FailAbort {
		return "abort"
	}
	return "skip"
}

// ExtractionResult holds what one unit yielded.
type ExtractionResult struct {
	UnitID        string
	Entities      []common.Entity
	Relationships []common.Relationship
	RawResponse   string
}

// SkippedUnit records a unit dropped under FailSkip.
type SkippedUnit struct {
	UnitID string
	Err    error
}

// BatchReport is the outcome of ExtractBatch. Results are in unit order.
type BatchReport struct {
	Results []ExtractionResult
	Skipped []SkippedUnit
}

// Extractor turns text units into entities and relationships using an LLM.
//
// An Extractor should be created using NewExtractor.
type Extractor struct {
	client      ai.GraphAIClient
	policy      FailurePolicy
	callTimeout time.Duration
	maxRetries  int
	backoff     time.Duration
	opts        []ai.GenerateOption

	extractSchema string
	claimSchema   string
}

// NewExtractorParams configures an Extractor.
//
// CallTimeout bounds a single LLM call; zero means no bound. MaxRetries is
// the number of attempts per unit for transport errors and defaults to 1.
// RetryBackoff is the first delay between attempts and doubles after each.
type NewExtractorParams struct {
	Client          ai.GraphAIClient
	FailurePolicy   FailurePolicy
	CallTimeout     time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	GenerateOptions []ai.GenerateOption
}

// NewExtractor returns an Extractor for params.
func NewExtractor(params NewExtractorParams) (*Extractor, error) {
	if params.Client == nil {
		return nil, errors.New("extractor requires an AI client")
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	backoff := params.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	schema := ai.SchemaString(ExtractionPayload{})
	return &Extractor{
		client:      params.Client,
		policy:      params.FailurePolicy,
		callTimeout: params.CallTimeout,
		maxRetries:  maxRetries,
		backoff:     backoff,
		opts:        params.GenerateOptions,

		extractSchema: schema,
		claimSchema:   schema,
	}, nil
}

// ExtractFromTextUnit sends one prompt for unit and parses the answer.
// Errors are *ExtractionTransportError or *ExtractionParseError.
func (x *Extractor) ExtractFromTextUnit(ctx context.Context, unit common.Unit) (*ExtractionResult, error) {
	prompt := fmt.Sprintf(ai.ExtractPrompt,
		strings.Join(common.EntityTypeNames(), ", "),
		x.extractSchema,
		unit.Text,
	)
	return x.extract(ctx, unit.ID, prompt)
}

// ExtractFromClaim runs the single-call claim prompt on text. Entity types
// claimant, location, risk and coverage map onto Person, Location, Risk and
// Insurance. Resulting IDs are scoped to claimID.
func (x *Extractor) ExtractFromClaim(ctx context.Context, claimID, text string) (*ExtractionResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("claim text is empty")
	}
	prompt := fmt.Sprintf(ai.ClaimPrompt, x.claimSchema, text)
	return x.extract(ctx, claimID, prompt)
}

func (x *Extractor) extract(ctx context.Context, unitID, prompt string) (*ExtractionResult, error) {
	raw, err := util.RetryWithBackoff(ctx, x.maxRetries, util.Backoff{Initial: x.backoff, Max: 30 * time.Second},
		func(ctx context.Context) (string, error) {
			if x.callTimeout <= 0 {
				return x.client.GenerateCompletion(ctx, prompt, x.opts...)
			}
			callCtx, cancel := context.WithTimeout(ctx, x.callTimeout)
			defer cancel()
			out, err := x.client.GenerateCompletion(callCtx, prompt, x.opts...)
			if err != nil && ctx.Err() == nil && callCtx.Err() != nil {
				// a per-call timeout is retryable, unlike cancellation of ctx
				return "", fmt.Errorf("llm call exceeded %s: %v", x.callTimeout, err)
			}
			return out, err
		})
	if err != nil {
		return nil, &ExtractionTransportError{UnitID: unitID, Err: err}
	}

	payload, err := ParseExtractionPayload(raw)
	if err != nil {
		var perr *ExtractionParseError
		if errors.As(err, &perr) {
			perr.UnitID = unitID
		}
		return nil, err
	}

	res := toExtractionResult(unitID, payload)
	res.RawResponse = raw
	return res, nil
}

// ExtractBatch extracts units in windows of ExtractionWindow. A transport
// error cancels the rest of its window and no later window starts. Parse
// errors follow the configured FailurePolicy.
func (x *Extractor) ExtractBatch(ctx context.Context, units []common.Unit) (*BatchReport, error) {
	results := make([]*ExtractionResult, len(units))
	report := &BatchReport{}
	var mu sync.Mutex

	for start := 0; start < len(units); start += ExtractionWindow {
		end := min(start+ExtractionWindow, len(units))
		logger.Debug("[Extract] Starting window", "from", start, "to", end, "total", len(units))

		g, gCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				unit := units[i]
				res, err := x.ExtractFromTextUnit(gCtx, unit)
				if err == nil {
					results[i] = res
					return nil
				}

				var perr *ExtractionParseError
				if errors.As(err, &perr) && x.policy == FailSkip {
					logger.Warn("[Extract] Skipping unit with unparsable response",
						"unit", unit.ID, "err", perr.Err, "raw", truncate(perr.Raw, 200))
					mu.Lock()
					report.Skipped = append(report.Skipped, SkippedUnit{UnitID: unit.ID, Err: err})
					mu.Unlock()
					return nil
				}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			logger.Error("[Extract] Batch aborted", "window_start", start, "err", err)
			return nil, err
		}
	}

	report.Results = make([]ExtractionResult, 0, len(units))
	for _, r := range results {
		if r != nil {
			report.Results = append(report.Results, *r)
		}
	}
	return report, nil
}

func toExtractionResult(unitID string, payload *ExtractionPayload) *ExtractionResult {
	res := &ExtractionResult{
		UnitID:        unitID,
		Entities:      make([]common.Entity, 0, len(payload.Entities)),
		Relationships: make([]common.Relationship, 0, len(payload.Relationships)),
	}

	for i, e := range payload.Entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		kind, err := common.ParseEntityType(e.Type)
		if err != nil {
			logger.Debug("[Extract] Dropping entity with unknown type", "unit", unitID, "name", name, "type", e.Type)
			continue
		}
		res.Entities = append(res.Entities, common.Entity{
			ID:          fmt.Sprintf("%s_entity_%d", unitID, i),
			Name:        name,
			Type:        kind,
			Description: strings.TrimSpace(e.Description),
			Confidence:  confidenceOf(e.Confidence),
			TextUnits:   []string{unitID},
			Properties:  common.NewProperties(kind, e.Properties),
		})
	}

	for i, r := range payload.Relationships {
		source, target := strings.TrimSpace(r.Source), strings.TrimSpace(r.Target)
		if source == "" || target == "" {
			continue
		}
		rel := common.Relationship{
			ID:          fmt.Sprintf("%s_relationship_%d", unitID, i),
			SourceName:  source,
			TargetName:  target,
			Type:        NormalizeRelationshipType(r.Type),
			Description: strings.TrimSpace(r.Description),
			Confidence:  confidenceOf(r.Confidence),
			TextUnits:   []string{unitID},
		}
		if r.Weight != nil {
			w := float64(*r.Weight)
			rel.Weight = &w
		}
		res.Relationships = append(res.Relationships, rel)
	}
	return res
}

func confidenceOf(s *Score) float64 {
	if s == nil {
		return DefaultConfidence
	}
	return common.ClampConfidence(float64(*s))
}

var nonToken = regexp.MustCompile(`[^A-Z0-9]+`)

// NormalizeRelationshipType turns a free model string into an uppercase
// token of [A-Z0-9_]. Empty input becomes RELATED_TO.
func NormalizeRelationshipType(s string) string {
	t := nonToken.ReplaceAllString(strings.ToUpper(strings.TrimSpace(s)), "_")
	t = strings.Trim(t, "_")
	if t == "" {
		return "RELATED_TO"
	}
	return t
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
