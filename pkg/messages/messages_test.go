package messages_test

import (
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-portrait/pkg/messages"
)

func TestLoadEmbedded(t *testing.T) {
	bundle, err := messages.LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded: %v", err)
	}

	if diff := cmp.Diff([]string{"en-US", "zh-CN"}, bundle.Locales()); diff != "" {
		t.Fatalf("locales mismatch (-want +got):\n%s", diff)
	}

	for _, key := range append([]string{
		messages.VerifySuccess,
		messages.ImageSize,
		messages.GenerateTimeout,
		messages.QuotaExhausted,
	}, messages.ProgressKeys...) {
		if _, ok := bundle.Message("en-US", key); !ok {
			t.Fatalf("en-US missing key %q", key)
		}
	}
}

func TestPrinterFormatsArguments(t *testing.T) {
	bundle := messages.MustLoadEmbedded()

	p := bundle.Printer("en-US")
	if got, want := p.Sprintf(messages.VerifySuccess, 5), "Code verified. 5 generations remaining."; got != want {
		t.Fatalf("en-US verify message: got %q want %q", got, want)
	}
	if got, want := p.Sprintf(messages.ImageSize, 5.72, "5MB"), "The image is 5.72MB; images may not exceed 5MB."; got != want {
		t.Fatalf("en-US size message: got %q want %q", got, want)
	}

	zh := bundle.Printer("zh-CN")
	if got, want := zh.Sprintf(messages.VerifySuccess, 3), "验证成功！剩余 3 次生成机会"; got != want {
		t.Fatalf("zh-CN verify message: got %q want %q", got, want)
	}
}

func TestPrinterFallsBackToBaseLocale(t *testing.T) {
	bundle := messages.MustLoadEmbedded()

	zh := bundle.Printer("zh-CN")
	// history.empty is only defined in en-US.
	if got, want := zh.Sprintf(messages.HistoryEmpty), "No generations yet."; got != want {
		t.Fatalf("fallback: got %q want %q", got, want)
	}

	unknown := bundle.Printer("fr-FR")
	if got, want := unknown.Sprintf(messages.CodeRequired), "Please enter an access code."; got != want {
		t.Fatalf("unknown locale: got %q want %q", got, want)
	}
}

func TestResolve(t *testing.T) {
	bundle := messages.MustLoadEmbedded()

	cases := map[string]string{
		"en-US":   "en-US",
		"zh-CN":   "zh-CN",
		"zh":      "zh-CN",
		"":        "en-US",
		"garbage": "en-US",
	}
	for in, want := range cases {
		if got := bundle.Resolve(in); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadFromFSRejectsLocaleMismatch(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en-US/core.yaml": {Data: []byte("locale: en-US\nnamespace: core\nmessages:\n  a: A\n")},
		"locales/de-DE/core.yaml": {Data: []byte("locale: fr-FR\nnamespace: core\nmessages:\n  a: B\n")},
	}
	if _, err := messages.LoadFromFS(fsys); err == nil {
		t.Fatalf("expected locale mismatch error")
	}
}

func TestLoadFromFSRequiresBaseLocale(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/zh-CN/core.yaml": {Data: []byte("locale: zh-CN\nnamespace: core\nmessages:\n  a: A\n")},
	}
	if _, err := messages.LoadFromFS(fsys); err == nil {
		t.Fatalf("expected missing base locale error")
	}
}
