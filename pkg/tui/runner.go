package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/message"

	"github.com/goliatone/go-portrait/internal/logging"
	"github.com/goliatone/go-portrait/pkg/contract"
	"github.com/goliatone/go-portrait/pkg/messages"
	"github.com/goliatone/go-portrait/pkg/wizard"
)

// Downloader fetches a generated portrait. *api.Client satisfies it.
type Downloader interface {
	Download(ctx context.Context, resultURL string, w io.Writer) (int64, error)
}

// Runner walks the user through the wizard with terminal prompts.
type Runner struct {
	controller    *wizard.Controller
	surface       *Surface
	driver        PromptDriver
	printer       *message.Printer
	downloader    Downloader
	downloadDir   string
	maxImageBytes int64
	logger        logrus.FieldLogger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithPromptDriver overrides the prompt driver used by the runner.
func WithPromptDriver(driver PromptDriver) RunnerOption {
	return func(r *Runner) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithDownloader enables saving results to disk.
func WithDownloader(d Downloader) RunnerOption {
	return func(r *Runner) {
		r.downloader = d
	}
}

// WithDownloadDir sets the default directory offered for downloads.
func WithDownloadDir(dir string) RunnerOption {
	return func(r *Runner) {
		if dir != "" {
			r.downloadDir = dir
		}
	}
}

// WithMaxImageBytes bounds how much of a selected file is read into memory.
func WithMaxImageBytes(n int64) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxImageBytes = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger logrus.FieldLogger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner wires a controller to its surface. The controller must have been
// built with the same surface.
func NewRunner(controller *wizard.Controller, surface *Surface, printer *message.Printer, options ...RunnerOption) (*Runner, error) {
	if controller == nil {
		return nil, errors.New("tui: controller is required")
	}
	if surface == nil {
		return nil, errors.New("tui: surface is required")
	}
	if printer == nil {
		return nil, errors.New("tui: printer is required")
	}
	r := &Runner{
		controller:    controller,
		surface:       surface,
		printer:       printer,
		downloadDir:   ".",
		maxImageBytes: wizard.DefaultMaxImageBytes,
		logger:        logging.Discard(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	if r.driver == nil {
		r.driver = NewSurveyDriver(surface.out)
	}
	return r, nil
}

// Run loops through the steps until the user quits, aborts or ctx ends.
// Quitting and aborting return nil.
func (r *Runner) Run(ctx context.Context) error {
	r.controller.Start()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			quit bool
			err  error
		)
		switch step := r.controller.Snapshot().Step; step {
		case wizard.StepAwaitingCode:
			err = r.codeStep(ctx)
		case wizard.StepAwaitingUpload:
			quit, err = r.uploadStep(ctx)
		case wizard.StepResultReady:
			quit, err = r.resultStep(ctx)
		default:
			return fmt.Errorf("tui: unexpected step %s", step)
		}

		if quit || errors.Is(err, ErrAborted) {
			_ = r.driver.Info(context.WithoutCancel(ctx), r.printer.Sprintf("bye"))
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (r *Runner) codeStep(ctx context.Context) error {
	code, err := r.driver.Input(ctx, InputConfig{Message: r.printer.Sprintf("prompt.code")})
	if err != nil {
		return err
	}
	r.handled("verify", ignoreResult(r.controller.Verify(ctx, code)))
	return nil
}

type action string

const (
	actionChoosePhoto action = "menu.choose_photo"
	actionGenerate    action = "menu.generate"
	actionHistory     action = "menu.history"
	actionBack        action = "menu.back"
	actionQuit        action = "menu.quit"
	actionDownload    action = "menu.download"
	actionAnother     action = "menu.another"
)

var (
	uploadMenu = []action{actionChoosePhoto, actionGenerate, actionHistory, actionBack, actionQuit}
	resultMenu = []action{actionDownload, actionAnother, actionBack, actionQuit}
)

func (r *Runner) uploadStep(ctx context.Context) (bool, error) {
	defaultIndex := 0
	if r.surface.SubmitEnabled() {
		defaultIndex = 1
	}
	choice, err := r.menu(ctx, "prompt.step_action", uploadMenu, defaultIndex)
	if err != nil {
		return false, err
	}

	switch choice {
	case actionChoosePhoto:
		return false, r.choosePhoto(ctx)
	case actionGenerate:
		if !r.controller.Snapshot().SubmitEnabled() {
			// The controller explains why nothing can be submitted yet.
			r.handled("generate", ignoreResult(r.controller.Generate(ctx, wizard.Options{})))
			return false, nil
		}
		opts, err := r.promptOptions(ctx)
		if err != nil {
			return false, err
		}
		r.handled("generate", ignoreResult(r.controller.Generate(ctx, opts)))
	case actionHistory:
		return false, r.showHistory(ctx)
	case actionBack:
		r.handled("back", r.controller.Back())
	case actionQuit:
		return true, nil
	}
	return false, nil
}

func (r *Runner) resultStep(ctx context.Context) (bool, error) {
	choice, err := r.menu(ctx, "prompt.result_action", resultMenu, 0)
	if err != nil {
		return false, err
	}

	switch choice {
	case actionDownload:
		return false, r.download(ctx)
	case actionAnother:
		r.handled("another", r.controller.DoAnother(ctx))
	case actionBack:
		r.handled("back", r.controller.Back())
	case actionQuit:
		return true, nil
	}
	return false, nil
}

func (r *Runner) menu(ctx context.Context, promptKey string, actions []action, defaultIndex int) (action, error) {
	labels := make([]string, len(actions))
	for i, a := range actions {
		labels[i] = r.printer.Sprintf(string(a))
	}
	idx, err := r.driver.Select(ctx, SelectConfig{
		Message:      r.printer.Sprintf(promptKey),
		Options:      labels,
		DefaultIndex: defaultIndex,
	})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(actions) {
		return "", fmt.Errorf("tui: menu selection %d out of range", idx)
	}
	return actions[idx], nil
}

func (r *Runner) choosePhoto(ctx context.Context) error {
	raw, err := r.driver.Input(ctx, InputConfig{Message: r.printer.Sprintf("prompt.photo")})
	if err != nil {
		return err
	}
	p := strings.Trim(strings.TrimSpace(raw), `"'`)
	if p == "" {
		r.surface.Notify(wizard.LevelError, r.printer.Sprintf(messages.ImageRequired))
		return nil
	}

	img, err := wizard.LoadImage(p, r.maxImageBytes)
	if err != nil {
		r.logger.WithField("path", p).WithError(err).Info("photo not readable")
		r.surface.Notify(wizard.LevelError, r.printer.Sprintf(messages.ImageDecode))
		return nil
	}
	r.handled("select", ignoreResult(r.controller.SelectFile(ctx, img)))
	return nil
}

// promptOptions asks for every enumerated option the catalog lists.
func (r *Runner) promptOptions(ctx context.Context) (wizard.Options, error) {
	var opts wizard.Options
	catalog := r.controller.Catalog()
	if catalog.Empty() {
		return opts, nil
	}

	background := catalog.Default(contract.FieldBackground)
	for _, choice := range catalog.Choices() {
		switch choice.Field {
		case contract.FieldStyle:
			continue
		case contract.FieldBeautify:
			yes, err := r.driver.Confirm(ctx, ConfirmConfig{
				Message: r.printer.Sprintf("label.beautify"),
				Default: choice.Default != "no",
			})
			if err != nil {
				return opts, err
			}
			opts.Beautify = &yes
			continue
		}

		value, err := r.selectChoice(ctx, choice, r.labelFor(choice.Field, background))
		if err != nil {
			return opts, err
		}
		switch choice.Field {
		case contract.FieldClothing:
			opts.Clothing = value
		case contract.FieldAngle:
			opts.Angle = value
		case contract.FieldBackground:
			opts.Background = value
			background = value
		case contract.FieldBackgroundColor:
			opts.BackgroundColor = value
		case contract.FieldGender:
			opts.Gender = value
		}
	}
	return opts, nil
}

func (r *Runner) labelFor(field, background string) string {
	if field == contract.FieldBackgroundColor && background != "" {
		return r.printer.Sprintf("label.bgColor." + background)
	}
	return r.printer.Sprintf("label." + field)
}

// selectChoice prompts for one enumerated value. Optional choices get a
// leading "not specified" entry that maps to the empty string.
func (r *Runner) selectChoice(ctx context.Context, choice contract.Choice, label string) (string, error) {
	values := append([]string(nil), choice.Values...)
	if !choice.Required {
		values = append([]string{""}, values...)
	}

	labels := make([]string, len(values))
	defaultIndex := 0
	for i, v := range values {
		if v == "" {
			labels[i] = r.printer.Sprintf("option.unset")
		} else {
			labels[i] = r.printer.Sprintf("option." + v)
		}
		if v == choice.Default && v != "" {
			defaultIndex = i
		}
	}

	idx, err := r.driver.Select(ctx, SelectConfig{Message: label, Options: labels, DefaultIndex: defaultIndex})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(values) {
		return "", fmt.Errorf("tui: %s selection %d out of range", choice.Field, idx)
	}
	return values[idx], nil
}

func (r *Runner) showHistory(ctx context.Context) error {
	history, err := r.controller.History(ctx)
	if err != nil {
		r.handled("history", err)
		r.surface.Notify(wizard.LevelWarning, r.printer.Sprintf(messages.QuotaRefreshFailed))
		return nil
	}
	if len(history) == 0 {
		return r.driver.Info(ctx, r.printer.Sprintf(messages.HistoryEmpty))
	}
	for _, entry := range history {
		if err := r.driver.Info(ctx, r.printer.Sprintf(messages.HistoryEntry, entry.Time, entry.Style, entry.Result)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) download(ctx context.Context) error {
	result := r.controller.Snapshot().Result
	if result == nil {
		return nil
	}
	if r.downloader == nil {
		r.handled("download", ErrNoDownloader)
		r.surface.Notify(wizard.LevelError, r.printer.Sprintf(messages.DownloadFailed))
		return nil
	}

	dir, err := r.driver.Input(ctx, InputConfig{
		Message: r.printer.Sprintf("prompt.download_dir"),
		Default: r.downloadDir,
	})
	if err != nil {
		return err
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = r.downloadDir
	}

	target := filepath.Join(dir, resultFileName(*result))
	if err := r.save(ctx, result.URL, target); err != nil {
		r.logger.WithFields(logrus.Fields{"op": "download", "target": target}).WithError(err).Warn("download failed")
		r.surface.Notify(wizard.LevelError, r.printer.Sprintf(messages.DownloadFailed))
		return nil
	}
	r.surface.Notify(wizard.LevelSuccess, r.printer.Sprintf(messages.DownloadSaved, target))
	return nil
}

func (r *Runner) save(ctx context.Context, resultURL, target string) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("tui: create download dir: %w", err)
	}
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("tui: create %s: %w", target, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(target)
		}
	}()
	_, err = r.downloader.Download(ctx, resultURL, f)
	return err
}

// handled logs an error the controller already reported on the surface.
func (r *Runner) handled(op string, err error) {
	if err == nil {
		return
	}
	r.logger.WithField("op", op).WithError(err).Debug("action did not complete")
}

// resultFileName names a download after the generation time, keeping the
// extension of the result URL.
func resultFileName(result wizard.Result) string {
	p := result.URL
	if u, err := url.Parse(result.URL); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	ext := strings.ToLower(path.Ext(name))
	if ext == "" || ext == "." {
		ext = ".png"
	}
	if result.GeneratedAt.IsZero() {
		if name == "." || name == "/" || name == "" {
			return "portrait" + ext
		}
		return name
	}
	return "portrait-" + result.GeneratedAt.Format("20060102-150405") + ext
}

func ignoreResult[T any](_ T, err error) error {
	return err
}
