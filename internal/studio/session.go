package studio

import (
	"context"
	"sync"
	"time"

	"proprofile/internal/domain"
	"proprofile/internal/imagegen"
	"proprofile/internal/intake"
)

// DownloadFilename is the name the generated portrait is offered under.
const DownloadFilename = "professional-headshot.png"

// Generator is the portrait generation client as seen by a session.
// *imagegen.Client implements it.
type Generator interface {
	Generate(ctx context.Context, source intake.DataURI, instruction string) (intake.DataURI, error)
}

// Session holds the UI state of one browser session: the source image, the
// instruction, the generated image and the tagged generation status.
type Session struct {
	id string

	mu          sync.Mutex
	source      intake.DataURI
	sourceInfo  *intake.Info
	generated   intake.DataURI
	instruction string
	status      Status
	epoch       uint64
	updatedAt   time.Time
}

// Attempt captures the inputs of one generation at invocation time.
type Attempt struct {
	Source      intake.DataURI
	Instruction string
	epoch       uint64
}

// Snapshot is an immutable view of a session for rendering.
type Snapshot struct {
	SessionID          string       `json:"session_id"`
	Phase              Phase        `json:"status"`
	SourceImage        string       `json:"source_image,omitempty"`
	Source             *intake.Info `json:"source,omitempty"`
	GeneratedImage     string       `json:"generated_image,omitempty"`
	Instruction        string       `json:"instruction"`
	InstructionDefault bool         `json:"instruction_is_default"`
	Error              string       `json:"error,omitempty"`
	UpdatedAt          time.Time    `json:"updated_at"`
	Status             Status       `json:"-"`
}

// Download is the generated portrait ready to be saved.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

func NewSession(id string) *Session {
	return &Session{
		id:          id,
		instruction: imagegen.DefaultInstruction,
		status:      Idle{},
		updatedAt:   time.Now(),
	}
}

func (s *Session) ID() string {
	return s.id
}

// LoadImage replaces the source image and clears any generated image and
// error. An in-flight generation for the previous image is discarded when
// it completes.
func (s *Session) LoadImage(img intake.DataURI) error {
	if img.IsZero() {
		return domain.ErrNoSourceImage
	}
	var info *intake.Info
	if described, err := intake.Describe(img); err == nil {
		info = &described
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = img
	s.sourceInfo = info
	s.generated = intake.DataURI{}
	s.status = ImageLoaded{}
	s.epoch++
	s.touch()
	return nil
}

// SetInstruction updates the instruction used by the next generation.
func (s *Session) SetInstruction(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instruction = text
	s.touch()
}

// Reset clears the source image, generated image and error and restores the
// default instruction, regardless of the current status.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = intake.DataURI{}
	s.sourceInfo = nil
	s.generated = intake.DataURI{}
	s.instruction = imagegen.DefaultInstruction
	s.status = Idle{}
	s.epoch++
	s.touch()
}

// Begin moves the session to Running and captures the current source image
// and instruction. Without a source image nothing changes.
func (s *Session) Begin() (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source.IsZero() {
		return Attempt{}, domain.ErrNoSourceImage
	}
	if _, running := s.status.(Running); running {
		return Attempt{}, domain.ErrGenerationInProgress
	}
	s.status = Running{Since: time.Now()}
	s.touch()
	return Attempt{Source: s.source, Instruction: s.instruction, epoch: s.epoch}, nil
}

// Complete applies the outcome of an attempt. Success replaces the generated
// image; failure records the reason and leaves a previous image in place.
// Outcomes of attempts started before the last LoadImage or Reset are
// dropped; Complete reports whether the outcome was applied.
func (s *Session) Complete(a Attempt, out intake.DataURI, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.epoch != s.epoch {
		return false
	}
	if _, running := s.status.(Running); !running {
		return false
	}
	if err == nil && out.IsZero() {
		err = imagegen.ErrNoImage
	}
	now := time.Now()
	if err != nil {
		s.status = Failed{Reason: imagegen.MessageOf(err), At: now}
	} else {
		s.generated = out
		s.status = Succeeded{At: now}
	}
	s.touch()
	return true
}

// Generate runs one attempt synchronously with gen. It returns the
// generation error, if any, after recording it on the session.
func (s *Session) Generate(ctx context.Context, gen Generator) error {
	attempt, err := s.Begin()
	if err != nil {
		return err
	}
	out, err := gen.Generate(ctx, attempt.Source, attempt.Instruction)
	s.Complete(attempt, out, err)
	return err
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		SessionID:          s.id,
		Phase:              s.status.Phase(),
		SourceImage:        s.source.String(),
		GeneratedImage:     s.generated.String(),
		Instruction:        s.instruction,
		InstructionDefault: s.instruction == imagegen.DefaultInstruction,
		UpdatedAt:          s.updatedAt,
		Status:             s.status,
	}
	if s.sourceInfo != nil {
		info := *s.sourceInfo
		snap.Source = &info
	}
	if failed, ok := s.status.(Failed); ok {
		snap.Error = failed.Reason
	}
	return snap
}

// Download returns the generated portrait as PNG.
func (s *Session) Download() (Download, error) {
	s.mu.Lock()
	generated := s.generated
	s.mu.Unlock()
	if generated.IsZero() {
		return Download{}, domain.ErrNoGeneratedImage
	}
	data, err := intake.ToPNG(generated)
	if err != nil {
		return Download{}, err
	}
	return Download{Filename: DownloadFilename, ContentType: "image/png", Data: data}, nil
}

func (s *Session) touch() {
	s.updatedAt = time.Now()
}
