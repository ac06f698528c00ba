package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/ashureev/parley/internal/domain"
)

// ResponseFormatJSON asks the model for a single JSON object.
const ResponseFormatJSON = "json_object"

// Context is the per-turn information a prompt is rendered from.
type Context struct {
	StudentName         string
	ConversationHistory []domain.ConversationTurn
	TurnNumber          int
	PredefinedQuestion  string
	CompanyName         string
	PositionName        string
}

// Request selects a prompt.
type Request struct {
	ScenarioID string
	LevelID    string
	Mode       domain.Mode
	Context    Context
	// PredefinedQuestion, when set, is the question the tutor must ask next.
	PredefinedQuestion string
}

// Config is the resolved prompt pair.
type Config struct {
	SystemPrompt   string
	UserPrompt     string
	ResponseFormat string
}

// JSON reports whether the prompt expects a json_object reply.
func (c Config) JSON() bool { return c.ResponseFormat == ResponseFormatJSON }

// Resolver turns a Request into a prompt pair.
type Resolver interface {
	Resolve(req Request) (Config, error)
}

// TemplateResolver renders prompts from the catalog with text/template.
type TemplateResolver struct {
	catalog *Catalog
}

var _ Resolver = (*TemplateResolver)(nil)

// NewResolver creates a resolver over catalog; nil uses the built-in catalog.
func NewResolver(catalog *Catalog) *TemplateResolver {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &TemplateResolver{catalog: catalog}
}

type templateData struct {
	Scenario Scenario
	Level    Level
	Context
	Question string
	History  string
}

var (
	systemTmpl = template.Must(template.New("system").Parse(
		`You are {{.Scenario.TutorRole}} helping an English learner practice speaking. ` +
			`The setting is {{.Scenario.Setting}}. {{.Level.Guidance}} ` +
			`Stay in character, keep every reply to one or two short sentences, and never correct grammar in a lecturing tone.` +
			`{{if .StudentName}} The learner's name is {{.StudentName}}.{{end}}`))

	guidedQuestionTmpl = template.Must(template.New("guided_question").Parse(
		`Conversation so far:
{{.History}}

This is turn {{.TurnNumber}}. React briefly and warmly to the learner's last answer, then ask exactly this next question:
"{{.Question}}"

Reply as a JSON object with these fields:
- "feedback": one short acknowledgment of the learner's last answer
- "question": the next question, exactly as given above
- "tutorMessage": feedback followed by the question`))

	guidedDynamicTmpl = template.Must(template.New("guided_dynamic").Parse(
		`Conversation so far:
{{.History}}

This is turn {{.TurnNumber}}. Continue the role-play with one natural follow-up question.
If the conversation has reached a natural end, set "shouldEnd" to true and write a friendly "closingMessage".

Reply as a JSON object with these fields:
- "feedback": one short acknowledgment of the learner's last answer, or "" if there is none
- "question": your next question
- "tutorMessage": the full message to say aloud
- "shouldEnd": true or false
- "closingMessage": a goodbye line, only when shouldEnd is true`))

	freeTmpl = template.Must(template.New("free").Parse(
		`You are interviewing the learner{{if .CompanyName}} for a job at {{.CompanyName}}{{end}}{{if .PositionName}} as {{.PositionName}}{{end}}.
Conversation so far:
{{.History}}

This is turn {{.TurnNumber}} of a 10 turn interview.{{if eq .TurnNumber 4}} Thank the learner for the details and ask your first real interview question. Do not evaluate anything yet.{{else}} Acknowledge the learner's last answer in a few words, then ask the next interview question.{{end}}
Ask only one question at a time and do not repeat earlier questions.

Reply as a JSON object with these fields:
- "feedback": a short acknowledgment such as "Great!" or "Well said!"
- "question": the next interview question
- "tutorMessage": feedback followed by the question
- "shouldEnd": true only if the interview is over
- "closingMessage": a short closing line, only when shouldEnd is true`))
)

// Resolve implements Resolver.
func (r *TemplateResolver) Resolve(req Request) (Config, error) {
	scenario, _ := r.catalog.Scenario(req.ScenarioID)
	level, _ := r.catalog.Level(req.LevelID)

	question := req.PredefinedQuestion
	if question == "" {
		question = req.Context.PredefinedQuestion
	}

	data := templateData{
		Scenario: scenario,
		Level:    level,
		Context:  req.Context,
		Question: question,
		History:  FormatHistory(req.Context.ConversationHistory),
	}

	var user *template.Template
	switch req.Mode {
	case domain.ModeFree:
		user = freeTmpl
		if data.Scenario.ID != "job-interview" {
			data.Scenario, _ = r.catalog.Scenario("job-interview")
		}
	case domain.ModeGuided, "":
		user = guidedDynamicTmpl
		if question != "" {
			user = guidedQuestionTmpl
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", domain.ErrUnknownMode, req.Mode)
	}

	system, err := render(systemTmpl, data)
	if err != nil {
		return Config{}, err
	}
	userPrompt, err := render(user, data)
	if err != nil {
		return Config{}, err
	}
	return Config{SystemPrompt: system, UserPrompt: userPrompt, ResponseFormat: ResponseFormatJSON}, nil
}

func render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// FormatHistory renders turns as "Tutor: ..." / "Learner: ..." lines.
func FormatHistory(turns []domain.ConversationTurn) string {
	if len(turns) == 0 {
		return "(no messages yet)"
	}
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch t.Role {
		case domain.RoleTutor:
			sb.WriteString("Tutor: ")
		case domain.RoleUser:
			sb.WriteString("Learner: ")
		case domain.RoleFeedback:
			sb.WriteString("Feedback: ")
		default:
			sb.WriteString(string(t.Role) + ": ")
		}
		sb.WriteString(strings.TrimSpace(t.Text))
	}
	return sb.String()
}
