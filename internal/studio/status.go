package studio

import "time"

// Phase names a GenerationStatus variant on the wire.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseImageLoaded Phase = "image_loaded"
	PhaseRunning     Phase = "running"
	PhaseSucceeded   Phase = "succeeded"
	PhaseFailed      Phase = "failed"
)

// Status is the tagged generation status of a session. Only Failed carries a
// reason, so an error can never coexist with Running or Succeeded.
type Status interface {
	Phase() Phase
	isStatus()
}

// Idle: no source image.
type Idle struct{}

// ImageLoaded: a source image is present and no generation has run since.
type ImageLoaded struct{}

// Running: a generation call is in flight.
type Running struct {
	Since time.Time
}

// Succeeded: the last generation produced the current generated image.
type Succeeded struct {
	At time.Time
}

// Failed: the last generation failed with a user-facing reason.
type Failed struct {
	Reason string
	At     time.Time
}

func (Idle) Phase() Phase        { return PhaseIdle }
func (ImageLoaded) Phase() Phase { return PhaseImageLoaded }
func (Running) Phase() Phase     { return PhaseRunning }
func (Succeeded) Phase() Phase   { return PhaseSucceeded }
func (Failed) Phase() Phase      { return PhaseFailed }

func (Idle) isStatus()        {}
func (ImageLoaded) isStatus() {}
func (Running) isStatus()     {}
func (Succeeded) isStatus()   {}
func (Failed) isStatus()      {}
