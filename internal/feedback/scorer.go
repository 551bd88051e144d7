package feedback

import (
	"context"
	"fmt"
	"strings"

	"github.com/intervue/backend/internal/models"
	"github.com/intervue/backend/pkg/llm"
)

// Categories are the fixed assessment categories, in the order they are reported.
var Categories = []string{
	"Communication Skills",
	"Technical Knowledge",
	"Problem Solving",
	"Cultural Fit",
	"Confidence and Clarity",
}

// Assessment is the scored evaluation of a transcript.
type Assessment struct {
	TotalScore          int                    `json:"totalScore"`
	CategoryScores      []models.CategoryScore `json:"categoryScores"`
	Strengths           []string               `json:"strengths"`
	AreasForImprovement []string               `json:"areasForImprovement"`
	FinalAssessment     string                 `json:"finalAssessment"`
}

// Validate checks score ranges and the category list.
func (a *Assessment) Validate() error {
	if a.TotalScore < 0 || a.TotalScore > 100 {
		return fmt.Errorf("total score %d out of range", a.TotalScore)
	}
	if len(a.CategoryScores) != len(Categories) {
		return fmt.Errorf("expected %d categories, got %d", len(Categories), len(a.CategoryScores))
	}
	for i, c := range a.CategoryScores {
		if c.Name != Categories[i] {
			return fmt.Errorf("category %d: expected %q, got %q", i, Categories[i], c.Name)
		}
		if c.Score < 0 || c.Score > 100 {
			return fmt.Errorf("category %q: score %d out of range", c.Name, c.Score)
		}
	}
	if strings.TrimSpace(a.FinalAssessment) == "" {
		return fmt.Errorf("final assessment is empty")
	}
	return nil
}

// Scorer evaluates an interview transcript.
type Scorer interface {
	Score(ctx context.Context, transcript []models.TranscriptTurn) (*Assessment, error)
}

type completer interface {
	CompleteJSON(ctx context.Context, req llm.JSONRequest, out any) error
}

// LLMScorer scores transcripts with a structured-output model.
type LLMScorer struct {
	llm completer
}

// NewLLMScorer builds a scorer over an llm client.
func NewLLMScorer(c completer) *LLMScorer {
	return &LLMScorer{llm: c}
}

// Score asks the model for an assessment and validates it.
func (s *LLMScorer) Score(ctx context.Context, transcript []models.TranscriptTurn) (*Assessment, error) {
	var a Assessment
	err := s.llm.CompleteJSON(ctx, llm.JSONRequest{
		Name:        "interview_feedback",
		System:      scorerSystemPrompt,
		Prompt:      scorerPrompt(transcript),
		Schema:      assessmentSchema(),
		Temperature: 0.2,
	}, &a)
	if err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid assessment: %w", err)
	}
	return &a, nil
}

// FormatTranscript renders turns as "- role: content" lines.
func FormatTranscript(turns []models.TranscriptTurn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "- %s: %s\n", t.Role, t.Content)
	}
	return b.String()
}

const scorerSystemPrompt = "You are a professional interviewer analyzing a mock interview. Your task is to evaluate the candidate based on structured categories."

func scorerPrompt(turns []models.TranscriptTurn) string {
	return fmt.Sprintf(`You are an AI interviewer analyzing a mock interview. Your task is to evaluate the candidate based on structured categories. Be thorough and detailed in your analysis. Don't be lenient with the candidate. If there are mistakes or areas for improvement, point them out.
Transcript:
%s
Please score the candidate from 0 to 100 in the following areas. Do not add categories other than the ones provided:
- **Communication Skills**: Clarity, articulation, structured responses.
- **Technical Knowledge**: Understanding of key concepts for the role.
- **Problem Solving**: Ability to analyze problems and propose solutions.
- **Cultural Fit**: Alignment with company values and job role.
- **Confidence and Clarity**: Confidence in responses, engagement, and clarity.`, FormatTranscript(turns))
}

func assessmentSchema() *llm.Schema {
	category := llm.Object(map[string]*llm.Schema{
		"name":    llm.Enum(Categories...),
		"score":   llm.Integer("0 to 100"),
		"comment": llm.String(""),
	})
	return llm.Object(map[string]*llm.Schema{
		"totalScore":          llm.Integer("0 to 100"),
		"categoryScores":      llm.Array(category),
		"strengths":           llm.Array(llm.String("")),
		"areasForImprovement": llm.Array(llm.String("")),
		"finalAssessment":     llm.String(""),
	})
}
