package tui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/text/message"

	"github.com/goliatone/go-portrait/pkg/messages"
	"github.com/goliatone/go-portrait/pkg/wizard"
)

// DefaultProgressInterval is how long each progress message stays up.
const DefaultProgressInterval = 4 * time.Second

// Surface renders wizard updates as lines on a writer. It is safe for
// concurrent use.
type Surface struct {
	printer  *message.Printer
	interval time.Duration
	progress []string

	outMu sync.Mutex
	out   io.Writer

	mu        sync.Mutex
	step      wizard.Step
	remaining int
	submit    bool
	busyStop  chan struct{}
	busyDone  chan struct{}
}

// SurfaceOption configures a Surface.
type SurfaceOption func(*Surface)

// WithOutput sets the writer. Defaults to stdout.
func WithOutput(w io.Writer) SurfaceOption {
	return func(s *Surface) {
		if w != nil {
			s.out = w
		}
	}
}

// WithProgressInterval sets how often the busy indicator advances.
func WithProgressInterval(d time.Duration) SurfaceOption {
	return func(s *Surface) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithProgressKeys overrides the catalog keys shown while busy.
func WithProgressKeys(keys ...string) SurfaceOption {
	return func(s *Surface) {
		if len(keys) > 0 {
			s.progress = append([]string(nil), keys...)
		}
	}
}

// NewSurface builds a Surface that localizes through printer.
func NewSurface(printer *message.Printer, options ...SurfaceOption) *Surface {
	s := &Surface{
		printer:   printer,
		interval:  DefaultProgressInterval,
		progress:  append([]string(nil), messages.ProgressKeys...),
		out:       os.Stdout,
		remaining: -1,
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

var _ wizard.Surface = (*Surface)(nil)

var stepKeys = map[wizard.Step]string{
	wizard.StepAwaitingCode:   messages.StepCode,
	wizard.StepAwaitingUpload: messages.StepUpload,
	wizard.StepResultReady:    messages.StepResult,
}

func (s *Surface) ShowStep(step wizard.Step) {
	s.mu.Lock()
	changed := s.step != step
	s.step = step
	s.mu.Unlock()
	if !changed {
		return
	}
	key, ok := stepKeys[step]
	if !ok {
		return
	}
	s.println("")
	s.println("== " + s.printer.Sprintf(key) + " ==")
}

func (s *Surface) SetRemaining(remaining int) {
	s.mu.Lock()
	changed := s.remaining != remaining
	s.remaining = remaining
	step := s.step
	s.mu.Unlock()
	if changed && step != wizard.StepAwaitingCode {
		s.println(s.printer.Sprintf("remaining.summary", remaining))
	}
}

func (s *Surface) SetSubmitEnabled(enabled bool) {
	s.mu.Lock()
	s.submit = enabled
	s.mu.Unlock()
}

// SubmitEnabled reports the last value set by the controller.
func (s *Surface) SubmitEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submit
}

// Remaining reports the last remaining count, or -1 before any update.
func (s *Surface) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Busy reports whether the progress indicator is running.
func (s *Surface) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busyStop != nil
}

// SetBusy starts or stops the rotating progress indicator. Stopping waits for
// the indicator goroutine to exit.
func (s *Surface) SetBusy(busy bool) {
	s.mu.Lock()
	if busy {
		if s.busyStop != nil {
			s.mu.Unlock()
			return
		}
		stop := make(chan struct{})
		done := make(chan struct{})
		s.busyStop, s.busyDone = stop, done
		s.mu.Unlock()
		go s.spin(stop, done)
		return
	}

	stop, done := s.busyStop, s.busyDone
	s.busyStop, s.busyDone = nil, nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

func (s *Surface) spin(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if len(s.progress) == 0 {
		<-stop
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	i := 0
	s.println("... " + s.printer.Sprintf(s.progress[i]))
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			i = (i + 1) % len(s.progress)
			s.println("... " + s.printer.Sprintf(s.progress[i]))
		}
	}
}

func (s *Surface) ShowPreview(p wizard.Preview) {
	s.println(s.printer.Sprintf("preview.summary", p.Name, p.Width, p.Height, p.Format, float64(p.Size)/(1<<20)))
}

func (s *Surface) ShowResult(r wizard.Result) {
	s.println(s.printer.Sprintf("result.summary", r.URL))
}

func (s *Surface) Notify(level wizard.Level, msg string) {
	s.println(fmt.Sprintf("[%s] %s", s.printer.Sprintf("level."+string(level)), msg))
}

// Println writes a line through the surface's writer.
func (s *Surface) Println(line string) {
	s.println(line)
}

func (s *Surface) println(line string) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	_, _ = fmt.Fprintln(s.out, line)
}
