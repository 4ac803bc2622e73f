package model

import "time"

// Product is a course. Topics, Q&A, quizzes and PDFs all belong to exactly
// one product through their topic.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TopicCounts holds the number of content items attached to a topic.
type TopicCounts struct {
	QnA     int `json:"qna"`
	Quizzes int `json:"quizzes"`
	PDFs    int `json:"pdfs"`
}

type Topic struct {
	ID          string      `json:"id"`
	ProductID   string      `json:"productId"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Order       int         `json:"order"`
	Count       TopicCounts `json:"_count"`
}

// TopicRef is the short topic form embedded in content listings.
type TopicRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type QnA struct {
	ID          string    `json:"id"`
	TopicID     string    `json:"topicId"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Level       string    `json:"level,omitempty"`
	CompanyTags []string  `json:"companyTags"`
	Topic       TopicRef  `json:"topic"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Quiz carries the correct answer; use Public before returning it to a
// learner.
type Quiz struct {
	ID            string
	TopicID       string
	Question      string
	Options       []string
	CorrectAnswer string
	Explanation   string
	Level         string
	CompanyTags   []string
	Topic         TopicRef
	CreatedAt     time.Time
}

// PublicQuiz is a quiz without its answer or explanation.
type PublicQuiz struct {
	ID          string   `json:"id"`
	TopicID     string   `json:"topicId"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Level       string   `json:"level,omitempty"`
	CompanyTags []string `json:"companyTags"`
	Topic       TopicRef `json:"topic"`
}

func (q Quiz) Public() PublicQuiz {
	return PublicQuiz{
		ID:          q.ID,
		TopicID:     q.TopicID,
		Question:    q.Question,
		Options:     q.Options,
		Level:       q.Level,
		CompanyTags: q.CompanyTags,
		Topic:       q.Topic,
	}
}

type QuizAttempt struct {
	ID             string
	UserID         string
	QuizID         string
	SelectedAnswer string
	IsCorrect      bool
	TimeTaken      *int
	CreatedAt      time.Time
}

type PDF struct {
	ID          string    `json:"id"`
	TopicID     string    `json:"topicId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	FileURL     string    `json:"fileUrl"`
	FileSize    *int64    `json:"fileSize,omitempty"`
	Topic       TopicRef  `json:"topic"`
	CreatedAt   time.Time `json:"createdAt"`
}
