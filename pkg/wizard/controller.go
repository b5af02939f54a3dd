package wizard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/message"

	"github.com/goliatone/go-portrait/internal/logging"
	"github.com/goliatone/go-portrait/pkg/api"
	"github.com/goliatone/go-portrait/pkg/contract"
	"github.com/goliatone/go-portrait/pkg/messages"
)

// Backend is the remote service the wizard talks to. *api.Client satisfies it.
type Backend interface {
	Verify(ctx context.Context, code string) (api.Quota, error)
	Generate(ctx context.Context, req api.GenerateRequest) (api.Generation, error)
	Status(ctx context.Context, code string) (api.Status, error)
}

// ExhaustedPolicy decides what happens when a refresh reports no generations
// left.
type ExhaustedPolicy string

const (
	// PolicyDisable keeps the wizard on the upload step with submission off.
	PolicyDisable ExhaustedPolicy = "disable"
	// PolicyReturnToCode clears the session and asks for a new code.
	PolicyReturnToCode ExhaustedPolicy = "return-to-code"
)

const (
	DefaultCodeLength    = 8
	DefaultMaxImageBytes = 16 << 20
)

// fallbackDefaults mirror the server defaults and apply when the catalog has
// no entry for a field.
var fallbackDefaults = map[string]string{
	contract.FieldClothing:        "business_suit",
	contract.FieldAngle:           "front",
	contract.FieldBackground:      "textured",
	contract.FieldBackgroundColor: "white",
	contract.FieldBeautify:        "yes",
}

// Controller drives the three step wizard. Methods are safe to call from
// multiple goroutines; at most one generation is outstanding at a time.
type Controller struct {
	backend Backend
	surface Surface
	printer *message.Printer
	logger  logrus.FieldLogger
	catalog contract.Catalog
	now     func() time.Time

	codeLength    int
	maxImageBytes int64
	policy        ExhaustedPolicy

	inFlight atomic.Bool

	mu      sync.Mutex
	session Session
}

// Option customizes a Controller.
type Option func(*Controller)

// WithCodeLength sets the expected access code length.
func WithCodeLength(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.codeLength = n
		}
	}
}

// WithMaxImageBytes sets the upload size limit.
func WithMaxImageBytes(n int64) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxImageBytes = n
		}
	}
}

// WithExhaustedPolicy selects the zero-remaining behaviour.
func WithExhaustedPolicy(p ExhaustedPolicy) Option {
	return func(c *Controller) {
		if p == PolicyDisable || p == PolicyReturnToCode {
			c.policy = p
		}
	}
}

// WithCatalog supplies the option vocabulary used to fill defaults and
// validate choices.
func WithCatalog(catalog contract.Catalog) Option {
	return func(c *Controller) {
		c.catalog = catalog
	}
}

// WithPrinter sets the printer used to localize notifications.
func WithPrinter(p *message.Printer) Option {
	return func(c *Controller) {
		if p != nil {
			c.printer = p
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a Controller on step 1.
func New(backend Backend, surface Surface, options ...Option) (*Controller, error) {
	if backend == nil {
		return nil, errors.New("wizard: backend is required")
	}
	if surface == nil {
		surface = NopSurface{}
	}
	c := &Controller{
		backend:       backend,
		surface:       surface,
		logger:        logging.Discard(),
		now:           time.Now,
		codeLength:    DefaultCodeLength,
		maxImageBytes: DefaultMaxImageBytes,
		policy:        PolicyReturnToCode,
		session:       Session{Step: StepAwaitingCode},
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	if c.printer == nil {
		bundle, err := messages.LoadEmbedded()
		if err != nil {
			return nil, err
		}
		c.printer = bundle.Printer(messages.BaseLocale)
	}
	return c, nil
}

// Start renders the initial step.
func (c *Controller) Start() {
	snap := c.Snapshot()
	c.surface.ShowStep(snap.Step)
	c.surface.SetRemaining(snap.Remaining)
	c.surface.SetSubmitEnabled(snap.SubmitEnabled())
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

// InFlight reports whether a generation is outstanding.
func (c *Controller) InFlight() bool {
	return c.inFlight.Load()
}

// Catalog returns the option vocabulary in use.
func (c *Controller) Catalog() contract.Catalog {
	return c.catalog
}

// Verify checks the code locally, asks the server for its quota and moves to
// the upload step on success.
func (c *Controller) Verify(ctx context.Context, raw string) (api.Quota, error) {
	const op = "verify"

	if c.inFlight.Load() {
		return api.Quota{}, ErrInFlight
	}
	if _, err := Next(c.Snapshot().Step, EventVerified); err != nil {
		return api.Quota{}, err
	}

	code := NormalizeCode(raw)
	if err := ValidateCode(code, c.codeLength); err != nil {
		return api.Quota{}, c.refuse(op, err)
	}

	quota, err := c.backend.Verify(ctx, code)
	if err != nil {
		c.report(op, err, verifyFailures)
		return api.Quota{}, err
	}

	c.mu.Lock()
	next, err := Next(c.session.Step, EventVerified)
	if err != nil {
		c.mu.Unlock()
		return api.Quota{}, err
	}
	c.session = Session{
		Step:      next,
		Code:      code,
		Remaining: max(quota.Remaining, 0),
		MaxUses:   quota.MaxUses,
	}
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"op": op, "remaining": quota.Remaining}).Info("code verified")
	c.surface.SetRemaining(max(quota.Remaining, 0))
	c.surface.ShowStep(next)
	c.surface.SetSubmitEnabled(false)
	if quota.Remaining <= 0 {
		c.surface.Notify(LevelWarning, c.printer.Sprintf(messages.QuotaExhausted))
	} else {
		c.surface.Notify(LevelSuccess, c.printer.Sprintf(messages.VerifySuccess, quota.Remaining))
	}
	return quota, nil
}

// SelectFile validates and previews a photo. A refused file leaves any
// previously accepted photo in place.
func (c *Controller) SelectFile(ctx context.Context, img Image) (Preview, error) {
	const op = "select"

	if c.inFlight.Load() {
		return Preview{}, ErrInFlight
	}
	if step := c.Snapshot().Step; step != StepAwaitingUpload {
		return Preview{}, ErrInvalidTransition
	}
	if err := AcceptImage(img, c.maxImageBytes); err != nil {
		return Preview{}, c.refuse(op, err)
	}
	img.Size = int64(len(img.Data))
	preview, err := DecodePreview(img)
	if err != nil {
		typed := &api.Error{Kind: api.KindDecode, Op: op, Message: c.printer.Sprintf(messages.ImageDecode), Err: err}
		c.logger.WithFields(logrus.Fields{"op": op, "name": img.Name}).WithError(err).Info("image decode failed")
		c.surface.Notify(LevelError, typed.Message)
		return Preview{}, typed
	}
	if err := ctx.Err(); err != nil {
		return Preview{}, &api.Error{Kind: api.KindCanceled, Op: op, Err: err}
	}

	stored := img
	stored.Data = append([]byte(nil), img.Data...)

	c.mu.Lock()
	if c.session.Step != StepAwaitingUpload {
		c.mu.Unlock()
		return Preview{}, ErrInvalidTransition
	}
	c.session.Image = &stored
	p := preview
	c.session.Preview = &p
	enabled := c.session.SubmitEnabled()
	c.mu.Unlock()

	c.surface.ShowPreview(preview)
	c.surface.SetSubmitEnabled(enabled)
	c.surface.Notify(LevelSuccess, c.printer.Sprintf(messages.ImageAccepted))
	return preview, nil
}

// Generate submits the selected photo. Only one generation may be
// outstanding; a second call returns ErrInFlight without contacting the
// server. The in-flight flag and busy indicator are cleared on every exit.
func (c *Controller) Generate(ctx context.Context, opts Options) (Result, error) {
	const op = "generate"

	if !c.inFlight.CompareAndSwap(false, true) {
		c.logger.WithField("op", op).Debug("generation already in flight")
		c.surface.Notify(LevelWarning, c.printer.Sprintf(messages.GenerateBusy))
		return Result{}, ErrInFlight
	}
	defer func() {
		c.surface.SetBusy(false)
		c.inFlight.Store(false)
	}()

	snap := c.Snapshot()
	if snap.Step != StepAwaitingUpload {
		return Result{}, ErrInvalidTransition
	}
	if snap.Image == nil {
		return Result{}, c.refuse(op, &ValidationError{Reason: ReasonImageMissing})
	}
	if snap.Remaining <= 0 {
		c.surface.SetSubmitEnabled(false)
		return Result{}, c.refuse(op, &ValidationError{Reason: ReasonExhausted})
	}
	req, err := c.buildRequest(snap, opts)
	if err != nil {
		return Result{}, c.refuse(op, err)
	}

	c.surface.SetSubmitEnabled(false)
	c.surface.SetBusy(true)
	c.surface.Notify(LevelInfo, c.printer.Sprintf(messages.GenerateStarted))
	c.logger.WithFields(logrus.Fields{"op": op, "image": snap.Image.Name}).Info("generation started")

	gen, err := c.backend.Generate(ctx, req)
	c.surface.SetBusy(false)
	if err != nil {
		c.report(op, err, generateFailures)
		c.surface.SetSubmitEnabled(c.Snapshot().SubmitEnabled())
		return Result{}, err
	}

	c.mu.Lock()
	next, err := Next(c.session.Step, EventGenerated)
	if err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	remaining := max(min(c.session.Remaining, gen.Remaining), 0)
	result := Result{URL: gen.ResultURL, Remaining: remaining, GeneratedAt: c.now()}
	c.session.Step = next
	c.session.Remaining = remaining
	c.session.Result = &result
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"op": op, "remaining": remaining}).Info("generation finished")
	c.surface.SetRemaining(remaining)
	c.surface.ShowStep(next)
	c.surface.ShowResult(result)
	c.surface.Notify(LevelSuccess, c.printer.Sprintf(messages.GenerateSuccess))
	return result, nil
}

// RefreshRemaining asks the server for the current quota. When none is left
// the configured ExhaustedPolicy applies.
func (c *Controller) RefreshRemaining(ctx context.Context) (int, error) {
	const op = "status"

	code := c.Snapshot().Code
	if code == "" {
		return 0, ErrNoCode
	}
	status, err := c.backend.Status(ctx, code)
	switch {
	case api.IsKind(err, api.KindRejected):
		// The service refuses status for a spent code instead of reporting zero.
		c.logger.WithFields(logrus.Fields{"op": op, "kind": api.KindRejected}).WithError(err).Info("code no longer usable")
		return c.applyRemaining(code, 0, 0), nil
	case err != nil:
		c.logger.WithFields(logrus.Fields{"op": op, "kind": api.KindOf(err)}).WithError(err).Warn("refresh failed")
		c.surface.Notify(LevelWarning, c.printer.Sprintf(messages.QuotaRefreshFailed))
		return 0, err
	}
	return c.applyRemaining(code, status.Remaining, status.MaxUses), nil
}

// applyRemaining stores a refreshed count for code and applies the exhausted
// policy when nothing is left.
func (c *Controller) applyRemaining(code string, remaining, maxUses int) int {
	remaining = max(remaining, 0)
	c.mu.Lock()
	if c.session.Code != code {
		c.mu.Unlock()
		return remaining
	}
	c.session.Remaining = remaining
	if maxUses > 0 {
		c.session.MaxUses = maxUses
	}
	step := c.session.Step
	enabled := c.session.SubmitEnabled()
	c.mu.Unlock()

	c.surface.SetRemaining(remaining)
	if remaining > 0 {
		c.surface.SetSubmitEnabled(enabled)
		c.surface.Notify(LevelInfo, c.printer.Sprintf(messages.QuotaRemaining, remaining))
		return remaining
	}

	c.surface.SetSubmitEnabled(false)
	c.surface.Notify(LevelWarning, c.printer.Sprintf(messages.QuotaExhausted))
	if c.policy == PolicyReturnToCode && step == StepAwaitingUpload && !c.inFlight.Load() {
		c.reset(EventExhausted)
	}
	return remaining
}

// DoAnother leaves the result step for a fresh upload and refreshes the
// remaining count.
func (c *Controller) DoAnother(ctx context.Context) error {
	c.mu.Lock()
	next, err := Next(c.session.Step, EventAgain)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.session.Step = next
	c.session.Image = nil
	c.session.Preview = nil
	c.session.Result = nil
	c.mu.Unlock()

	c.surface.ShowStep(next)
	c.surface.SetSubmitEnabled(false)
	_, err = c.RefreshRemaining(ctx)
	return err
}

// Back abandons the current code and returns to step 1.
func (c *Controller) Back() error {
	if c.inFlight.Load() {
		return ErrInFlight
	}
	if _, err := Next(c.Snapshot().Step, EventBack); err != nil {
		return err
	}
	c.reset(EventBack)
	return nil
}

// History returns past generations for the verified code.
func (c *Controller) History(ctx context.Context) ([]api.HistoryEntry, error) {
	code := c.Snapshot().Code
	if code == "" {
		return nil, ErrNoCode
	}
	status, err := c.backend.Status(ctx, code)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"op": "history", "kind": api.KindOf(err)}).WithError(err).Warn("history failed")
		return nil, err
	}
	return status.History, nil
}

func (c *Controller) reset(ev Event) {
	c.mu.Lock()
	next, err := Next(c.session.Step, ev)
	if err != nil {
		c.mu.Unlock()
		return
	}
	c.session = Session{Step: next}
	c.mu.Unlock()

	c.logger.WithField("event", string(ev)).Info("session reset")
	c.surface.SetRemaining(0)
	c.surface.SetSubmitEnabled(false)
	c.surface.ShowStep(next)
}

func (c *Controller) buildRequest(snap Session, opts Options) (api.GenerateRequest, error) {
	req := api.GenerateRequest{
		Code: snap.Code,
		Image: api.Upload{
			Name:        snap.Image.Name,
			ContentType: baseMediaType(snap.Image.ContentType),
			Data:        snap.Image.Data,
		},
		Style: api.StylePortrait,
	}

	fields := []struct {
		field string
		value string
		dst   *string
	}{
		{contract.FieldClothing, opts.Clothing, &req.Clothing},
		{contract.FieldAngle, opts.Angle, &req.Angle},
		{contract.FieldBackground, opts.Background, &req.Background},
		{contract.FieldBackgroundColor, opts.BackgroundColor, &req.BackgroundColor},
	}
	for _, f := range fields {
		value, err := c.resolveOption(f.field, f.value)
		if err != nil {
			return api.GenerateRequest{}, err
		}
		*f.dst = value
	}

	if opts.Gender != "" {
		if choice, ok := c.catalog.Choice(contract.FieldGender); ok && !choice.Allows(opts.Gender) {
			return api.GenerateRequest{}, &ValidationError{Reason: ReasonOption, Field: contract.FieldGender, Value: opts.Gender}
		}
		req.Gender = opts.Gender
	}

	if opts.Beautify != nil {
		req.Beautify = *opts.Beautify
	} else {
		beautify, err := c.resolveOption(contract.FieldBeautify, "")
		if err != nil {
			return api.GenerateRequest{}, err
		}
		req.Beautify = beautify != "no"
	}
	return req, nil
}

func (c *Controller) resolveOption(field, value string) (string, error) {
	choice, ok := c.catalog.Choice(field)
	if value == "" {
		if ok && choice.Default != "" {
			return choice.Default, nil
		}
		return fallbackDefaults[field], nil
	}
	if ok && !choice.Allows(value) {
		return "", &ValidationError{Reason: ReasonOption, Field: field, Value: value}
	}
	return value, nil
}

// refuse wraps a local validation failure, notifies the surface and logs it.
func (c *Controller) refuse(op string, err error) error {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	typed := &api.Error{Kind: api.KindValidation, Op: op, Message: c.validationMessage(verr), Err: verr}
	c.logger.WithFields(logrus.Fields{"op": op, "reason": string(verr.Reason)}).Debug("input refused")
	level := LevelError
	if verr.Reason == ReasonExhausted {
		level = LevelWarning
	}
	c.surface.Notify(level, typed.Message)
	return typed
}

func (c *Controller) validationMessage(verr *ValidationError) string {
	p := c.printer
	switch verr.Reason {
	case ReasonCodeEmpty:
		return p.Sprintf(messages.CodeRequired)
	case ReasonCodeLength:
		return p.Sprintf(messages.CodeLength, int(verr.Limit))
	case ReasonImageMissing:
		return p.Sprintf(messages.ImageRequired)
	case ReasonImageEmpty:
		return p.Sprintf(messages.ImageEmpty)
	case ReasonImageType:
		return p.Sprintf(messages.ImageType)
	case ReasonImageSize:
		return p.Sprintf(messages.ImageSize, float64(verr.Size)/mib, FormatLimit(verr.Limit))
	case ReasonOption:
		return p.Sprintf(messages.OptionInvalid, verr.Value, verr.Field)
	case ReasonExhausted:
		return p.Sprintf(messages.QuotaExhausted)
	default:
		return verr.Error()
	}
}

type failureKeys struct {
	connectivity string
	timeout      string
	malformed    string
	canceled     string
	fallback     string
}

var (
	verifyFailures = failureKeys{
		connectivity: messages.VerifyNetwork,
		timeout:      messages.VerifyTimeout,
		malformed:    messages.GenerateMalformed,
		canceled:     messages.GenerateCanceled,
		fallback:     messages.VerifyFailed,
	}
	generateFailures = failureKeys{
		connectivity: messages.GenerateConnectivity,
		timeout:      messages.GenerateTimeout,
		malformed:    messages.GenerateMalformed,
		canceled:     messages.GenerateCanceled,
		fallback:     messages.GenerateFailed,
	}
)

// report logs a remote failure and shows the message matching its kind.
// Server supplied messages win for rejected requests.
func (c *Controller) report(op string, err error, keys failureKeys) {
	kind := api.KindOf(err)
	entry := c.logger.WithFields(logrus.Fields{"op": op, "kind": string(kind)}).WithError(err)

	var msg string
	level := LevelError
	switch kind {
	case api.KindRejected:
		entry.Info("request rejected")
		msg = api.ServerMessage(err)
		if msg == "" {
			msg = c.printer.Sprintf(keys.fallback)
		}
	case api.KindConnectivity:
		entry.Warn("request failed")
		msg = c.printer.Sprintf(keys.connectivity)
	case api.KindTimeout:
		entry.Warn("request timed out")
		msg = c.printer.Sprintf(keys.timeout)
	case api.KindCanceled:
		entry.Info("request canceled")
		msg = c.printer.Sprintf(keys.canceled)
		level = LevelWarning
	case api.KindMalformed:
		entry.Error("malformed response")
		msg = c.printer.Sprintf(keys.malformed)
	default:
		entry.Error("request failed")
		msg = c.printer.Sprintf(keys.fallback)
	}
	c.surface.Notify(level, msg)
}
