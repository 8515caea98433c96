package model

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrStorage           = errors.New("storage failure")
	ErrExtraction        = errors.New("document extraction failed")
	ErrGeneration        = errors.New("answer generation failed")
	ErrInvalidTransition = errors.New("invalid document status transition")
	ErrDuplicateFilename = errors.New("a document with this filename already exists")
)
