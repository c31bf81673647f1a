package models

import "time"

const (
	DefaultQuizPassingScore = 70
	DefaultQuizMaxAttempts  = 3
)

var (
	ModuleCategories   = []string{"basics", "identification", "prevention", "response", "advanced"}
	ModuleDifficulties = []string{"beginner", "intermediate", "advanced"}
)

type ModuleSection struct {
	Title    string `json:"title" bson:"title"`
	Content  string `json:"content,omitempty" bson:"content"`
	Type     string `json:"type" bson:"type"` // text, video, interactive, quiz
	MediaURL string `json:"mediaUrl,omitempty" bson:"mediaUrl,omitempty"`
	Order    int    `json:"order" bson:"order"`
}

type QuizQuestion struct {
	Question      string   `json:"question" bson:"question"`
	Type          string   `json:"type" bson:"type"` // multiple-choice, true-false, scenario
	Options       []string `json:"options,omitempty" bson:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty" bson:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty" bson:"explanation,omitempty"`
	Points        int      `json:"points" bson:"points"`
}

type Quiz struct {
	Questions    []QuizQuestion `json:"questions" bson:"questions"`
	PassingScore int            `json:"passingScore" bson:"passingScore"`
	MaxAttempts  int            `json:"maxAttempts" bson:"maxAttempts"`
}

type ModuleStatistics struct {
	TotalCompletions int64   `json:"totalCompletions" bson:"totalCompletions"`
	AverageScore     float64 `json:"averageScore" bson:"averageScore"`
	AverageTime      float64 `json:"averageTime" bson:"averageTime"`
}

type EducationModule struct {
	ID            string           `json:"id" bson:"-"`
	Title         string           `json:"title" bson:"title"`
	Description   string           `json:"description" bson:"description"`
	Category      string           `json:"category" bson:"category"`
	Difficulty    string           `json:"difficulty" bson:"difficulty"`
	EstimatedTime int              `json:"estimatedTime" bson:"estimatedTime"` // minutes
	Sections      []ModuleSection  `json:"sections" bson:"sections"`
	Quiz          Quiz             `json:"quiz" bson:"quiz"`
	Tags          []string         `json:"tags,omitempty" bson:"tags,omitempty"`
	IsActive      bool             `json:"isActive" bson:"isActive"`
	CreatedBy     string           `json:"createdBy" bson:"createdBy"`
	Statistics    ModuleStatistics `json:"statistics" bson:"statistics"`
	CreatedAt     time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// TotalPoints sums question points, counting unset points as 1.
func (q Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Weight()
	}
	return total
}

func (q QuizQuestion) Weight() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// WithoutAnswers returns a copy of the module safe to show to learners.
func (m EducationModule) WithoutAnswers() EducationModule {
	questions := make([]QuizQuestion, len(m.Quiz.Questions))
	for i, q := range m.Quiz.Questions {
		q.CorrectAnswer = ""
		q.Explanation = ""
		questions[i] = q
	}
	m.Quiz.Questions = questions
	return m
}

// Outline drops section bodies and answers for catalogue listings.
func (m EducationModule) Outline() EducationModule {
	m = m.WithoutAnswers()
	sections := make([]ModuleSection, len(m.Sections))
	for i, s := range m.Sections {
		s.Content = ""
		sections[i] = s
	}
	m.Sections = sections
	return m
}

type ModuleCompletion struct {
	ID          string    `json:"id" bson:"-"`
	UserID      string    `json:"userId" bson:"userId"`
	ModuleID    string    `json:"moduleId" bson:"moduleId"`
	Score       int       `json:"score" bson:"score"`
	TimeSpent   int       `json:"timeSpent" bson:"timeSpent"` // minutes
	CompletedAt time.Time `json:"completedAt" bson:"completedAt"`
}
