package model

import (
	"math"
	"time"
)

// Bookmark points at exactly one of a Q&A item or a PDF.
type Bookmark struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	QnAID     *string   `json:"qnaId"`
	PDFID     *string   `json:"pdfId"`
	Title     string    `json:"title"`
	Topic     TopicRef  `json:"topic"`
	CreatedAt time.Time `json:"createdAt"`
}

// Progress is a per-user, per-topic completion record.
type Progress struct {
	UserID            string    `json:"userId"`
	TopicID           string    `json:"topicId"`
	TopicName         string    `json:"topicName,omitempty"`
	ProductID         string    `json:"productId,omitempty"`
	ProductName       string    `json:"productName,omitempty"`
	CompletionPercent float64   `json:"completionPercent"`
	Score             *float64  `json:"score"`
	LastAccessedAt    time.Time `json:"lastAccessedAt"`
}

// QuizStats summarises a user's quiz attempts.
type QuizStats struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

type UserStats struct {
	QuizAttempts    QuizStats `json:"quizAttempts"`
	AvgTimePerQuiz  int       `json:"avgTimePerQuiz"`
	OverallProgress float64   `json:"overallProgress"`
	TopicsStarted   int       `json:"topicsStarted"`
}

// NewUserStats derives the stats payload from raw aggregates. Percentages
// are rounded to two decimals and the average time to whole seconds.
func NewUserStats(total, correct, timedCount int, timeSum float64, topics int, progressSum float64) UserStats {
	s := UserStats{
		QuizAttempts:  QuizStats{Total: total, Correct: correct},
		TopicsStarted: topics,
	}
	if total > 0 {
		s.QuizAttempts.Accuracy = round2(float64(correct) / float64(total) * 100)
	}
	if timedCount > 0 {
		s.AvgTimePerQuiz = int(math.Round(timeSum / float64(timedCount)))
	}
	if topics > 0 {
		s.OverallProgress = round2(progressSum / float64(topics))
	}
	return s
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
