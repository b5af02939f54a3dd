package tui

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/message"

	"github.com/goliatone/go-portrait/pkg/api"
	"github.com/goliatone/go-portrait/pkg/contract"
	"github.com/goliatone/go-portrait/pkg/messages"
	"github.com/goliatone/go-portrait/pkg/wizard"
)

type stubDriver struct {
	inputs       []string
	selectIdx    []int
	confirm      []bool
	inputErr     error
	infoMessages []string
	selectLabels []string
	inputPos     int
	selectPos    int
	confirmPos   int
}

func (s *stubDriver) Input(_ context.Context, _ InputConfig) (string, error) {
	if s.inputErr != nil {
		return "", s.inputErr
	}
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	s.selectLabels = append(s.selectLabels, cfg.Message)
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

type stubBackend struct {
	mu       sync.Mutex
	requests []api.GenerateRequest
}

func (b *stubBackend) Verify(context.Context, string) (api.Quota, error) {
	return api.Quota{Remaining: 3, MaxUses: 10}, nil
}

func (b *stubBackend) Generate(_ context.Context, req api.GenerateRequest) (api.Generation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	return api.Generation{ResultURL: "/result/abc.png?v=1", Remaining: 2}, nil
}

func (b *stubBackend) Status(context.Context, string) (api.Status, error) {
	return api.Status{Quota: api.Quota{Remaining: 2}, History: []api.HistoryEntry{{Style: "portrait", Time: "2024-05-01 09:30", Result: "/result/abc.png"}}}, nil
}

type stubDownloader struct {
	urls []string
}

func (d *stubDownloader) Download(_ context.Context, resultURL string, w io.Writer) (int64, error) {
	d.urls = append(d.urls, resultURL)
	n, err := io.WriteString(w, "PNGDATA")
	return int64(n), err
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_FullFlow(t *testing.T) {
	dir := t.TempDir()
	photo := writePNG(t, dir)
	saveDir := filepath.Join(dir, "out")

	driver := &stubDriver{
		inputs: []string{"abcd1234", photo, saveDir},
		selectIdx: []int{
			0,    // choose photo
			1,    // generate
			3, 1, // clothing turtleneck, angle slight_tilt
			1, 2, // background solid, bgColor blue
			0, // gender not specified
			0, // download
			3, // quit
		},
		confirm: []bool{false},
	}
	backend := &stubBackend{}
	downloader := &stubDownloader{}
	out := &syncBuffer{}

	clock := func() time.Time { return time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC) }
	runner := newRunnerWith(t, backend, driver, out, []wizard.Option{wizard.WithClock(clock)}, WithDownloader(downloader), WithDownloadDir(dir))
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(backend.requests) != 1 {
		t.Fatalf("expected one generate request, got %d", len(backend.requests))
	}
	got := backend.requests[0]
	got.Image = api.Upload{}
	want := api.GenerateRequest{
		Code:            "ABCD1234",
		Style:           "portrait",
		Clothing:        "turtleneck",
		Angle:           "slight_tilt",
		Background:      "solid",
		BackgroundColor: "blue",
		Beautify:        false,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}

	saved := filepath.Join(saveDir, "portrait-20240501-093015.png")
	data, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("read saved portrait: %v", err)
	}
	if string(data) != "PNGDATA" {
		t.Fatalf("saved content = %q", data)
	}
	if diff := cmp.Diff([]string{"/result/abc.png?v=1"}, downloader.urls); diff != "" {
		t.Fatalf("download urls (-want +got):\n%s", diff)
	}

	text := out.String()
	for _, fragment := range []string{
		"Step 2 of 3",
		"Code verified. 3 generations remaining.",
		"me.png: 3x2 png",
		"Step 3 of 3",
		"Result: /result/abc.png?v=1",
		"Portrait saved to " + saved,
	} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("output missing %q:\n%s", fragment, text)
		}
	}
	if !slicesContain(driver.selectLabels, "Solid background color") {
		t.Fatalf("bgColor label should follow background choice, got %v", driver.selectLabels)
	}
	if last := driver.infoMessages[len(driver.infoMessages)-1]; last != "Bye." {
		t.Fatalf("expected farewell, got %q", last)
	}
}

func TestRun_AbortOnCodePrompt(t *testing.T) {
	driver := &stubDriver{inputErr: ErrAborted}
	runner := newRunner(t, &stubBackend{}, driver, &syncBuffer{})
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("abort should end cleanly, got %v", err)
	}
	if diff := cmp.Diff([]string{"Bye."}, driver.infoMessages); diff != "" {
		t.Fatalf("info (-want +got):\n%s", diff)
	}
}

func TestRun_DriverFailureIsReturned(t *testing.T) {
	boom := errors.New("tty gone")
	driver := &stubDriver{inputErr: boom}
	runner := newRunner(t, &stubBackend{}, driver, &syncBuffer{})
	if err := runner.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected driver error, got %v", err)
	}
}

func TestRun_GenerateWithoutPhotoSkipsOptions(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"ABCD1234"},
		selectIdx: []int{1, 4}, // generate, quit
	}
	backend := &stubBackend{}
	out := &syncBuffer{}
	runner := newRunner(t, backend, driver, out)
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(backend.requests) != 0 {
		t.Fatalf("no request expected, got %d", len(backend.requests))
	}
	if diff := cmp.Diff([]string{"What next?", "What next?"}, driver.selectLabels); diff != "" {
		t.Fatalf("option prompts must not run (-want +got):\n%s", diff)
	}
	if !strings.Contains(out.String(), "Please upload a photo first.") {
		t.Fatalf("output should explain the refusal:\n%s", out.String())
	}
}

func TestRun_ShowsHistory(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"ABCD1234"},
		selectIdx: []int{2, 4}, // history, quit
	}
	runner := newRunner(t, &stubBackend{}, driver, &syncBuffer{})
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"2024-05-01 09:30  portrait  /result/abc.png", "Bye."}
	if diff := cmp.Diff(want, driver.infoMessages); diff != "" {
		t.Fatalf("info (-want +got):\n%s", diff)
	}
}

func TestSurface_BusyIndicatorRotatesAndStops(t *testing.T) {
	out := &syncBuffer{}
	surface := NewSurface(testPrinter(), WithOutput(out), WithProgressInterval(5*time.Millisecond))

	surface.SetBusy(true)
	surface.SetBusy(true)
	deadline := time.Now().Add(2 * time.Second)
	for strings.Count(out.String(), "... ") < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	surface.SetBusy(false)
	if surface.Busy() {
		t.Fatalf("indicator should be stopped")
	}

	text := out.String()
	if !strings.Contains(text, "Analyzing photo features") || !strings.Contains(text, "Adjusting light and color") {
		t.Fatalf("progress messages did not rotate:\n%s", text)
	}
	time.Sleep(20 * time.Millisecond)
	if out.String() != text {
		t.Fatalf("indicator kept writing after it was hidden")
	}
	surface.SetBusy(false)
}

func TestSurface_Notify(t *testing.T) {
	out := &syncBuffer{}
	surface := NewSurface(testPrinter(), WithOutput(out))
	surface.Notify(wizard.LevelWarning, "careful")
	if got := out.String(); got != "[warning] careful\n" {
		t.Fatalf("notify output = %q", got)
	}
}

func TestResultFileName(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC)
	cases := []struct {
		result wizard.Result
		want   string
	}{
		{wizard.Result{URL: "/result/abc.png", GeneratedAt: at}, "portrait-20240501-093015.png"},
		{wizard.Result{URL: "/result/abc.png?token=1", GeneratedAt: at}, "portrait-20240501-093015.png"},
		{wizard.Result{URL: "https://cdn.example.com/x/y.JPG", GeneratedAt: at}, "portrait-20240501-093015.jpg"},
		{wizard.Result{URL: "/result/noext", GeneratedAt: at}, "portrait-20240501-093015.png"},
		{wizard.Result{URL: "/result/abc.png"}, "abc.png"},
		{wizard.Result{URL: ""}, "portrait.png"},
		{wizard.Result{URL: "/"}, "portrait.png"},
	}
	for _, tc := range cases {
		if got := resultFileName(tc.result); got != tc.want {
			t.Fatalf("resultFileName(%+v) = %q, want %q", tc.result, got, tc.want)
		}
	}
}

func newRunner(t *testing.T, backend wizard.Backend, driver PromptDriver, out io.Writer, opts ...RunnerOption) *Runner {
	t.Helper()
	return newRunnerWith(t, backend, driver, out, nil, opts...)
}

func newRunnerWith(t *testing.T, backend wizard.Backend, driver PromptDriver, out io.Writer, controllerOpts []wizard.Option, opts ...RunnerOption) *Runner {
	t.Helper()
	doc, err := contract.Load(context.Background())
	if err != nil {
		t.Fatalf("load contract: %v", err)
	}
	printer := testPrinter()
	surface := NewSurface(printer, WithOutput(out), WithProgressInterval(time.Hour))
	controllerOpts = append([]wizard.Option{wizard.WithCatalog(doc.Catalog()), wizard.WithPrinter(printer)}, controllerOpts...)
	controller, err := wizard.New(backend, surface, controllerOpts...)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	runner, err := NewRunner(controller, surface, printer, append([]RunnerOption{WithPromptDriver(driver)}, opts...)...)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner
}

func testPrinter() *message.Printer {
	return messages.MustLoadEmbedded().Printer(messages.BaseLocale)
}

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 2))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	p := filepath.Join(dir, "me.png")
	if err := os.WriteFile(p, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func slicesContain(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
