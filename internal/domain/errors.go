package domain

import "errors"

var (
	ErrNoSourceImage        = errors.New("no source image loaded")
	ErrGenerationInProgress = errors.New("generation already in progress")
	ErrNoGeneratedImage     = errors.New("no generated image")
)
