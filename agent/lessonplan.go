package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/stemchat/internal/lessons"
)

// LessonCatalog is the lesson plan search backend.
type LessonCatalog interface {
	Search(ctx context.Context, q lessons.Query) ([]lessons.Plan, error)
}

var (
	lessonKeywords = []string{
		"lesson", "curriculum", "plan", "activity", "worksheet", "experiment",
		"project", "grade", "subject", "topic", "find", "recommend", "search",
	}
	knownSubjects = []string{"biology", "chemistry", "physics", "math", "engineering"}
	gradePattern  = regexp.MustCompile(`grade\s*(\d+)`)
)

const lessonAgentName = "LessonPlanAgent"

// LessonPlanAgent finds lesson plans by keyword, subject and grade.
type LessonPlanAgent struct {
	catalog LessonCatalog
	logger  *zap.Logger
}

// NewLessonPlanAgent 创建课程计划 Agent
func NewLessonPlanAgent(catalog LessonCatalog, logger *zap.Logger) *LessonPlanAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonPlanAgent{catalog: catalog, logger: logger.With(zap.String("agent", lessonAgentName))}
}

func (a *LessonPlanAgent) Name() string { return lessonAgentName }

func (a *LessonPlanAgent) Description() string {
	return "Finds and recommends lesson plans by topic, subject and grade level."
}

func (a *LessonPlanAgent) Capabilities() []string {
	return []string{
		"Search lesson plans by topic",
		"Filter by subject and grade level",
		"List materials a lesson needs",
	}
}

// Assess counts lesson keywords: two or more is a strong match.
func (a *LessonPlanAgent) Assess(message string, _ RequestContext) float64 {
	msg := normalizeMessage(message)
	matches := 0
	for _, kw := range lessonKeywords {
		if strings.Contains(msg, kw) {
			matches++
		}
	}
	switch {
	case matches >= 2:
		return 0.8
	case matches == 1:
		return 0.5
	default:
		return 0
	}
}

// Execute searches the catalog with what is left after keyword removal.
func (a *LessonPlanAgent) Execute(ctx context.Context, message string, _ RequestContext, _ Store) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("lesson plan agent panicked", zap.Any("panic", r))
			res = failure("lesson plan search failed")
		}
	}()

	q := parseLessonQuery(normalizeMessage(message))
	plans, err := a.catalog.Search(ctx, q)
	if err != nil {
		a.logger.Error("lesson plan search failed", zap.Error(err))
		return failure("lesson plan search failed")
	}

	if len(plans) == 0 {
		return Result{
			Success: true,
			Message: "No relevant lesson plans found.",
			Actions: []string{"lesson_plan_search"},
		}
	}

	var b strings.Builder
	b.WriteString("📚 Top lesson plans found:")
	for i, p := range plans {
		fmt.Fprintf(&b, "\n\n[%d] %s (%s, grade %d)\n%s", i+1, p.Title, p.Subject, p.GradeLevel, p.Summary)
		if p.Materials != "" {
			fmt.Fprintf(&b, "\nMaterials: %s", p.Materials)
		}
	}
	return Result{
		Success: true,
		Message: b.String(),
		Data:    map[string]any{"lesson_plans": plans},
		Actions: []string{"lesson_plan_search"},
	}
}

func parseLessonQuery(msg string) lessons.Query {
	q := lessons.Query{Limit: 3}
	if m := gradePattern.FindStringSubmatch(msg); m != nil {
		q.GradeLevel, _ = strconv.Atoi(m[1])
		msg = strings.Replace(msg, m[0], " ", 1)
	}
	for _, subj := range knownSubjects {
		if strings.Contains(msg, subj) {
			q.Subject = subj
		}
	}

	keywords := toSet(lessonKeywords...)
	for _, tok := range tokenize(msg) {
		sing := singularize(tok)
		if _, ok := keywords[sing]; ok {
			continue
		}
		if _, ok := stopWords[tok]; ok {
			continue
		}
		if _, ok := allWords[tok]; ok {
			continue
		}
		if tok == q.Subject || len(sing) < 3 {
			continue
		}
		q.Terms = append(q.Terms, sing)
	}
	return q
}
