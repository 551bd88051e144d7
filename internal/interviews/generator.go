package interviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/intervue/backend/pkg/llm"
)

// ErrNoQuestions is returned when the model produced an empty question list.
var ErrNoQuestions = errors.New("interviews: no questions generated")

// GenerateRequest describes the interview to prepare.
type GenerateRequest struct {
	Role      string
	Level     string
	Type      string
	Techstack []string
	Amount    int
}

type completer interface {
	CompleteJSON(ctx context.Context, req llm.JSONRequest, out any) error
}

// QuestionGenerator drafts interview questions with an LLM.
type QuestionGenerator struct {
	llm completer
}

// NewQuestionGenerator builds a generator over an llm client.
func NewQuestionGenerator(c completer) *QuestionGenerator {
	return &QuestionGenerator{llm: c}
}

// Generate returns up to req.Amount questions.
func (g *QuestionGenerator) Generate(ctx context.Context, req GenerateRequest) ([]string, error) {
	var out struct {
		Questions []string `json:"questions"`
	}
	err := g.llm.CompleteJSON(ctx, llm.JSONRequest{
		Name:   "interview_questions",
		System: "You prepare questions for job interviews.",
		Prompt: questionsPrompt(req),
		Schema: llm.Object(map[string]*llm.Schema{
			"questions": llm.Array(llm.String("one interview question")),
		}),
		Temperature: 0.7,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	questions := make([]string, 0, len(out.Questions))
	for _, q := range out.Questions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if req.Amount > 0 && len(questions) > req.Amount {
		questions = questions[:req.Amount]
	}
	return questions, nil
}

func questionsPrompt(req GenerateRequest) string {
	return fmt.Sprintf(`Prepare questions for a job interview.
The job role is %s.
The job experience level is %s.
The tech stack used in the job is: %s.
The focus between behavioural and technical questions should lean towards: %s.
The amount of questions required is: %d.
Please return only the questions, without any additional text.
The questions are going to be read by a voice assistant so do not use "/" or "*" or any other special characters which might break the voice assistant.`,
		req.Role, req.Level, strings.Join(req.Techstack, ", "), req.Type, req.Amount)
}
