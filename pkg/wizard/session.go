package wizard

import "time"

// Image is a photo selected for upload.
type Image struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// Preview describes a decoded image.
type Preview struct {
	Name   string
	Format string
	Width  int
	Height int
	Size   int64
}

// Result is a completed generation.
type Result struct {
	URL         string
	Remaining   int
	GeneratedAt time.Time
}

// Options are the styling choices sent with a generation. Empty fields take
// the catalog default.
type Options struct {
	Clothing        string
	Angle           string
	Background      string
	BackgroundColor string
	Gender          string
	Beautify        *bool
}

// Session is a snapshot of the wizard state.
type Session struct {
	Step      Step
	Code      string
	Remaining int
	MaxUses   int
	Image     *Image
	Preview   *Preview
	Result    *Result
}

// SubmitEnabled reports whether a generation may be submitted.
func (s Session) SubmitEnabled() bool {
	return s.Step == StepAwaitingUpload && s.Image != nil && s.Remaining > 0
}

func (s Session) clone() Session {
	out := s
	if s.Image != nil {
		img := *s.Image
		out.Image = &img
	}
	if s.Preview != nil {
		p := *s.Preview
		out.Preview = &p
	}
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	return out
}
