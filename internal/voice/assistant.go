package voice

import "strings"

// Assistant is an inline assistant definition sent to the provider.
type Assistant struct {
	Name         string      `json:"name"`
	FirstMessage string      `json:"firstMessage"`
	Transcriber  Transcriber `json:"transcriber"`
	Voice        VoiceConfig `json:"voice"`
	Model        ModelConfig `json:"model"`
}

// Transcriber configures speech to text.
type Transcriber struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Language string `json:"language"`
}

// VoiceConfig configures text to speech.
type VoiceConfig struct {
	Provider        string  `json:"provider"`
	VoiceID         string  `json:"voiceId"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarityBoost"`
	Speed           float64 `json:"speed"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"useSpeakerBoost"`
}

// ModelConfig configures the conversation model.
type ModelConfig struct {
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"maxTokens"`
	Messages    []ModelMessage `json:"messages"`
}

// ModelMessage is a seed message for the conversation model.
type ModelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QuestionsVariable is the template variable the interviewer prompt reads its question list from.
const QuestionsVariable = "questions"

// FormatQuestions renders questions as "- q" lines joined by newlines.
func FormatQuestions(questions []string) string {
	lines := make([]string, 0, len(questions))
	for _, q := range questions {
		lines = append(lines, "- "+q)
	}
	return strings.Join(lines, "\n")
}

// Interviewer returns the assistant that conducts a mock interview. Its
// system prompt expects the {{questions}} variable.
func Interviewer() *Assistant {
	return &Assistant{
		Name:         "Interviewer",
		FirstMessage: "Hello! Thank you for taking the time to speak with me today. I'm excited to learn more about you and your experience.",
		Transcriber: Transcriber{
			Provider: "deepgram",
			Model:    "nova-2",
			Language: "en",
		},
		Voice: VoiceConfig{
			Provider:        "11labs",
			VoiceID:         "sarah",
			Stability:       0.65,
			SimilarityBoost: 0.65,
			Speed:           0.85,
			Style:           0.3,
			UseSpeakerBoost: true,
		},
		Model: ModelConfig{
			Provider:    "openai",
			Model:       "gpt-4",
			Temperature: 0.7,
			MaxTokens:   250,
			Messages:    []ModelMessage{{Role: "system", Content: interviewerPrompt}},
		},
	}
}

const interviewerPrompt = `You are a professional job interviewer conducting a real-time voice interview with a candidate. Your goal is to assess their qualifications, motivation, and fit for the role.

Interview Guidelines:
Follow the structured question flow:
{{questions}}

Engage naturally & react appropriately:
Listen actively to responses and acknowledge them before moving forward.
Ask brief follow-up questions if a response is vague or requires more detail.
Keep the conversation flowing smoothly while maintaining control.
Be professional, yet warm and welcoming:

Use official yet friendly language.
Keep responses concise and to the point (like in a real voice interview).
Avoid robotic phrasing and sound natural and conversational.
Answer the candidate's questions professionally:

If asked about the role, company, or expectations, provide a clear and relevant answer.
If unsure, redirect the candidate to HR for more details.

IMPORTANT RESTRICTIONS:
- DO NOT ask the candidate to write code or provide specific code snippets during the interview.
- DO NOT request that they solve coding problems in real-time.
- Focus on conceptual understanding, past experiences, and theoretical knowledge instead.
- Ask about their approach to problems rather than demanding code solutions.
- If there's a long pause (more than 10-15 seconds of silence), politely check if the candidate is still there or needs clarification.
- Avoid using periods and commas in isolation, as they may be pronounced as "dot" and "comma".

Conclude the interview properly:
- Once you've asked all the questions, inform the candidate that the interview is complete.
- Clearly state: "That concludes our interview for today. Thank you for your time."
- After delivering the closing statement, do not ask any further questions.
- The call will be automatically ended, so ensure you've completed your assessment before giving the closing statement.

- Be sure to be professional and polite.
- Keep all your responses short and simple. Use official language, but be kind and welcoming.
- This is a voice conversation, so keep your responses short, like in a real conversation. Don't ramble for too long.
- Do not end the conversation abruptly. Wait for the user to indicate they want to end the interview.`
