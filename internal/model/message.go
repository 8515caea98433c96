package model

import "time"

type Source struct {
	Filename   string `json:"filename"`
	PageNumber int    `json:"page_number"`
	Content    string `json:"content"`
}

// Message is one question/answer pair in a thread log. Logs are append-only.
type Message struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []Source  `json:"sources"`
	Timestamp time.Time `json:"timestamp"`
}
