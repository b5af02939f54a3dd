package wizard

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Surface renders wizard state. Calls happen on the goroutine that invoked
// the Controller method.
type Surface interface {
	ShowStep(step Step)
	SetRemaining(remaining int)
	SetBusy(busy bool)
	SetSubmitEnabled(enabled bool)
	ShowPreview(preview Preview)
	ShowResult(result Result)
	Notify(level Level, message string)
}

// NopSurface discards every update.
type NopSurface struct{}

func (NopSurface) ShowStep(Step)         {}
func (NopSurface) SetRemaining(int)      {}
func (NopSurface) SetBusy(bool)          {}
func (NopSurface) SetSubmitEnabled(bool) {}
func (NopSurface) ShowPreview(Preview)   {}
func (NopSurface) ShowResult(Result)     {}
func (NopSurface) Notify(Level, string)  {}
