package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store"
)

const maxRecommendations = 3

var difficultyRank = map[string]int{"beginner": 0, "intermediate": 1, "advanced": 2}

type EducationService struct {
	modules store.ModuleStore
	policy  AccessPolicy
	logger  *zap.Logger
	now     func() time.Time
}

type ModuleInput struct {
	Title         string                 `json:"title" validate:"required,max=200"`
	Description   string                 `json:"description" validate:"required,max=1000"`
	Category      string                 `json:"category" validate:"required,oneof=basics identification prevention response advanced"`
	Difficulty    string                 `json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
	EstimatedTime int                    `json:"estimatedTime" validate:"gte=1,lte=600"`
	Sections      []models.ModuleSection `json:"sections" validate:"required,min=1"`
	Quiz          models.Quiz            `json:"quiz"`
	Tags          []string               `json:"tags"`
	IsActive      *bool                  `json:"isActive"`
}

type QuizSubmission struct {
	Answers   []string `json:"answers"`
	TimeSpent int      `json:"timeSpent"`
}

type QuestionResult struct {
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer,omitempty"`
	Explanation   string `json:"explanation,omitempty"`
}

type QuizResult struct {
	Score        int                      `json:"score"`
	Passed       bool                     `json:"passed"`
	EarnedPoints int                      `json:"earnedPoints"`
	TotalPoints  int                      `json:"totalPoints"`
	PassingScore int                      `json:"passingScore"`
	Results      []QuestionResult         `json:"results"`
	Completion   *models.ModuleCompletion `json:"completion,omitempty"`
}

type CompletedModule struct {
	ModuleID    string    `json:"moduleId"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Score       int       `json:"score"`
	TimeSpent   int       `json:"timeSpent"`
	CompletedAt time.Time `json:"completedAt"`
}

type LearningProgress struct {
	Completed        []CompletedModule        `json:"completed"`
	TotalModules     int                      `json:"totalModules"`
	CompletedModules int                      `json:"completedModules"`
	CompletionRate   float64                  `json:"completionRate"`
	AverageScore     float64                  `json:"averageScore"`
	Recommendations  []models.EducationModule `json:"recommendations"`
}

type ScoreBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

type ModuleStats struct {
	ModuleID          string                    `json:"moduleId"`
	Title             string                    `json:"title"`
	Statistics        models.ModuleStatistics   `json:"statistics"`
	PassRate          float64                   `json:"passRate"`
	ScoreDistribution []ScoreBucket             `json:"scoreDistribution"`
	RecentCompletions []models.ModuleCompletion `json:"recentCompletions"`
}

func NewEducationService(modules store.ModuleStore, policy AccessPolicy, logger *zap.Logger) *EducationService {
	return &EducationService{
		modules: modules,
		policy:  policy,
		logger:  logger.With(zap.String("service", "education")),
		now:     time.Now,
	}
}

// List returns the active catalogue as outlines.
func (s *EducationService) List(ctx context.Context, actor Actor, category, difficulty string) ([]models.EducationModule, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	modules, err := s.modules.ListModules(ctx, store.ModuleFilter{Category: category, Difficulty: difficulty, ActiveOnly: true})
	if err != nil {
		return nil, storeError("list modules", err)
	}
	out := make([]models.EducationModule, 0, len(modules))
	for _, m := range modules {
		out = append(out, m.Outline())
	}
	return out, nil
}

// Get returns the full module. Learners never see answers or inactive modules.
func (s *EducationService) Get(ctx context.Context, actor Actor, id string) (*models.EducationModule, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	module, err := s.modules.FindModuleByID(ctx, id)
	if err != nil {
		return nil, storeError("find module", err)
	}
	if s.policy.CanReview(actor) {
		return module, nil
	}
	if !module.IsActive {
		return nil, ErrNotFound
	}
	learner := module.WithoutAnswers()
	return &learner, nil
}

func (s *EducationService) SubmitQuiz(ctx context.Context, actor Actor, id string, sub QuizSubmission) (*QuizResult, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	module, err := s.modules.FindModuleByID(ctx, id)
	if err != nil {
		return nil, storeError("find module", err)
	}
	if !module.IsActive {
		return nil, ErrNotFound
	}
	questions := module.Quiz.Questions
	if len(questions) == 0 {
		return nil, invalid("quiz", "module has no quiz")
	}
	if len(sub.Answers) != len(questions) {
		return nil, invalid("answers", fmt.Sprintf("expected %d answers", len(questions)))
	}
	if sub.TimeSpent < 0 {
		return nil, invalid("timeSpent", "must not be negative")
	}

	_, err = s.modules.FindCompletion(ctx, actor.ID, id)
	if err == nil {
		return nil, invalid("module", "module already completed")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, storeError("find completion", err)
	}

	result := gradeQuiz(module.Quiz, sub.Answers)
	if !result.Passed {
		// the quiz can be retaken, so a failed attempt only learns which answers were wrong
		result.hideAnswers()
		return result, nil
	}

	completion := &models.ModuleCompletion{
		UserID:      actor.ID,
		ModuleID:    id,
		Score:       result.Score,
		TimeSpent:   sub.TimeSpent,
		CompletedAt: s.now().UTC(),
	}
	if err := s.modules.RecordCompletion(ctx, completion); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, invalid("module", "module already completed")
		}
		return nil, storeError("record completion", err)
	}
	result.Completion = completion

	if err := s.refreshStatistics(ctx, id); err != nil {
		// the completion is recorded; statistics catch up on the next pass
		s.logger.Error("failed to refresh module statistics", zap.String("module_id", id), zap.Error(err))
	}
	s.logger.Info("module completed",
		zap.String("module_id", id),
		zap.String("user_id", actor.ID),
		zap.Int("score", result.Score))
	return result, nil
}

// gradeQuiz scores by points. Answers match case-insensitively after trimming.
func gradeQuiz(quiz models.Quiz, answers []string) *QuizResult {
	passing := quiz.PassingScore
	if passing <= 0 {
		passing = models.DefaultQuizPassingScore
	}
	result := &QuizResult{
		TotalPoints:  quiz.TotalPoints(),
		PassingScore: passing,
		Results:      make([]QuestionResult, 0, len(quiz.Questions)),
	}
	for i, q := range quiz.Questions {
		correct := strings.EqualFold(strings.TrimSpace(answers[i]), strings.TrimSpace(q.CorrectAnswer))
		if correct {
			result.EarnedPoints += q.Weight()
		}
		result.Results = append(result.Results, QuestionResult{
			Question:      q.Question,
			Answer:        answers[i],
			Correct:       correct,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		})
	}
	result.Score = int(math.Round(100 * float64(result.EarnedPoints) / float64(result.TotalPoints)))
	result.Passed = result.Score >= passing
	return result
}

func (r *QuizResult) hideAnswers() {
	for i := range r.Results {
		r.Results[i].CorrectAnswer = ""
		r.Results[i].Explanation = ""
	}
}

func (s *EducationService) refreshStatistics(ctx context.Context, moduleID string) error {
	completions, err := s.modules.ListCompletions(ctx, store.CompletionFilter{ModuleID: moduleID})
	if err != nil {
		return err
	}
	return s.modules.UpdateModuleStatistics(ctx, moduleID, summarize(completions))
}

func summarize(completions []models.ModuleCompletion) models.ModuleStatistics {
	stats := models.ModuleStatistics{TotalCompletions: int64(len(completions))}
	if len(completions) == 0 {
		return stats
	}
	var score, spent int
	for _, c := range completions {
		score += c.Score
		spent += c.TimeSpent
	}
	n := float64(len(completions))
	stats.AverageScore = math.Round(float64(score)/n*100) / 100
	stats.AverageTime = math.Round(float64(spent)/n*100) / 100
	return stats
}

func (s *EducationService) Progress(ctx context.Context, actor Actor) (*LearningProgress, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	completions, err := s.modules.ListCompletions(ctx, store.CompletionFilter{UserID: actor.ID})
	if err != nil {
		return nil, storeError("list completions", err)
	}
	modules, err := s.modules.ListModules(ctx, store.ModuleFilter{ActiveOnly: true})
	if err != nil {
		return nil, storeError("list modules", err)
	}

	byID := make(map[string]models.EducationModule, len(modules))
	for _, m := range modules {
		byID[m.ID] = m
	}

	progress := &LearningProgress{
		Completed:       make([]CompletedModule, 0, len(completions)),
		TotalModules:    len(modules),
		Recommendations: []models.EducationModule{},
	}
	done := make(map[string]bool, len(completions))
	totalScore := 0
	for _, c := range completions {
		done[c.ModuleID] = true
		totalScore += c.Score
		entry := CompletedModule{ModuleID: c.ModuleID, Score: c.Score, TimeSpent: c.TimeSpent, CompletedAt: c.CompletedAt}
		if m, ok := byID[c.ModuleID]; ok {
			entry.Title = m.Title
			entry.Category = m.Category
			progress.CompletedModules++
		}
		progress.Completed = append(progress.Completed, entry)
	}
	if len(completions) > 0 {
		progress.AverageScore = math.Round(float64(totalScore)/float64(len(completions))*100) / 100
	}
	if progress.TotalModules > 0 {
		progress.CompletionRate = math.Round(float64(progress.CompletedModules)/float64(progress.TotalModules)*10000) / 100
	}

	pending := make([]models.EducationModule, 0, len(modules))
	for _, m := range modules {
		if !done[m.ID] {
			pending = append(pending, m)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		ri, rj := difficultyRank[pending[i].Difficulty], difficultyRank[pending[j].Difficulty]
		if ri != rj {
			return ri < rj
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	for i := 0; i < len(pending) && i < maxRecommendations; i++ {
		progress.Recommendations = append(progress.Recommendations, pending[i].Outline())
	}
	return progress, nil
}

func (s *EducationService) Create(ctx context.Context, actor Actor, in ModuleInput) (*models.EducationModule, error) {
	if err := s.policy.requireReviewer(actor); err != nil {
		return nil, err
	}
	if err := validateModule(&in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	module := &models.EducationModule{CreatedBy: actor.ID, IsActive: true, CreatedAt: now}
	applyModuleInput(module, in, now)
	if err := s.modules.CreateModule(ctx, module); err != nil {
		return nil, storeError("create module", err)
	}
	s.logger.Info("module created", zap.String("module_id", module.ID), zap.String("actor", actor.ID))
	return module, nil
}

func (s *EducationService) Update(ctx context.Context, actor Actor, id string, in ModuleInput) (*models.EducationModule, error) {
	if err := s.policy.requireReviewer(actor); err != nil {
		return nil, err
	}
	if err := validateModule(&in); err != nil {
		return nil, err
	}
	module, err := s.modules.FindModuleByID(ctx, id)
	if err != nil {
		return nil, storeError("find module", err)
	}
	applyModuleInput(module, in, s.now().UTC())
	if err := s.modules.UpdateModule(ctx, module); err != nil {
		return nil, storeError("update module", err)
	}
	return module, nil
}

// Deactivate hides a module from learners; completions are kept.
func (s *EducationService) Deactivate(ctx context.Context, actor Actor, id string) error {
	if err := s.policy.requireReviewer(actor); err != nil {
		return err
	}
	if err := s.modules.SetModuleActive(ctx, id, false); err != nil {
		return storeError("deactivate module", err)
	}
	s.logger.Info("module deactivated", zap.String("module_id", id), zap.String("actor", actor.ID))
	return nil
}

func (s *EducationService) Stats(ctx context.Context, actor Actor, id string) (*ModuleStats, error) {
	if err := s.policy.requireReviewer(actor); err != nil {
		return nil, err
	}
	module, err := s.modules.FindModuleByID(ctx, id)
	if err != nil {
		return nil, storeError("find module", err)
	}
	completions, err := s.modules.ListCompletions(ctx, store.CompletionFilter{ModuleID: id})
	if err != nil {
		return nil, storeError("list completions", err)
	}

	stats := &ModuleStats{
		ModuleID:          module.ID,
		Title:             module.Title,
		Statistics:        summarize(completions),
		ScoreDistribution: scoreDistribution(completions),
		RecentCompletions: completions,
	}
	if len(stats.RecentCompletions) > 10 {
		stats.RecentCompletions = stats.RecentCompletions[:10]
	}
	passing := module.Quiz.PassingScore
	if passing <= 0 {
		passing = models.DefaultQuizPassingScore
	}
	if len(completions) > 0 {
		passed := 0
		for _, c := range completions {
			if c.Score >= passing {
				passed++
			}
		}
		stats.PassRate = math.Round(float64(passed)/float64(len(completions))*10000) / 100
	}
	return stats, nil
}

func scoreDistribution(completions []models.ModuleCompletion) []ScoreBucket {
	buckets := []ScoreBucket{{Range: "0-20"}, {Range: "21-40"}, {Range: "41-60"}, {Range: "61-80"}, {Range: "81-100"}}
	for _, c := range completions {
		i := 0
		if c.Score > 20 {
			i = (c.Score - 1) / 20
		}
		if i > len(buckets)-1 {
			i = len(buckets) - 1
		}
		buckets[i].Count++
	}
	return buckets
}

func validateModule(in *ModuleInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Difficulty = strings.ToLower(strings.TrimSpace(in.Difficulty))

	var verr *ValidationError
	if err := validateStruct(in); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	} else {
		verr = &ValidationError{Message: "Validation failed"}
	}

	for i, section := range in.Sections {
		if strings.TrimSpace(section.Title) == "" {
			verr.add(fmt.Sprintf("sections[%d].title", i), "is required")
		}
	}
	for i, q := range in.Quiz.Questions {
		if strings.TrimSpace(q.Question) == "" {
			verr.add(fmt.Sprintf("quiz.questions[%d].question", i), "is required")
		}
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			verr.add(fmt.Sprintf("quiz.questions[%d].correctAnswer", i), "is required")
		}
	}
	if in.Quiz.PassingScore < 0 || in.Quiz.PassingScore > 100 {
		verr.add("quiz.passingScore", "must be between 0 and 100")
	}
	return verr.orNil()
}

func applyModuleInput(module *models.EducationModule, in ModuleInput, now time.Time) {
	module.Title = in.Title
	module.Description = in.Description
	module.Category = in.Category
	module.Difficulty = in.Difficulty
	module.EstimatedTime = in.EstimatedTime
	module.Sections = in.Sections
	for i := range module.Sections {
		if module.Sections[i].Order == 0 {
			module.Sections[i].Order = i + 1
		}
	}
	module.Quiz = in.Quiz
	if module.Quiz.PassingScore == 0 {
		module.Quiz.PassingScore = models.DefaultQuizPassingScore
	}
	if module.Quiz.MaxAttempts <= 0 {
		module.Quiz.MaxAttempts = models.DefaultQuizMaxAttempts
	}
	module.Tags = in.Tags
	if in.IsActive != nil {
		module.IsActive = *in.IsActive
	}
	module.UpdatedAt = now
}
