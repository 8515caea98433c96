package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

const MaxThreadTitleLength = 50

type Thread struct {
	ThreadID     string    `json:"thread_id"`
	Title        string    `json:"title"`
	PDFFileID    string    `json:"pdf_file_id"`
	PDFFilename  string    `json:"pdf_filename"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

type ThreadStats struct {
	TotalThreads    int        `json:"total_threads"`
	TotalMessages   int        `json:"total_messages"`
	OldestCreatedAt *time.Time `json:"oldest_created_at"`
	NewestCreatedAt *time.Time `json:"newest_created_at"`
}

// ThreadTitle keeps the first 50 characters of the trimmed question and
// marks truncation with "...".
func ThreadTitle(question string) string {
	question = strings.TrimSpace(question)
	if utf8.RuneCountInString(question) <= MaxThreadTitleLength {
		return question
	}
	return string([]rune(question)[:MaxThreadTitleLength]) + "..."
}
