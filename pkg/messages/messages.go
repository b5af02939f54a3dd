package messages

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale every other catalog falls back to.
const BaseLocale = "en-US"

//go:embed locales/*/*.yaml
var embeddedLocales embed.FS

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// Bundle holds the user-facing messages of every locale.
type Bundle struct {
	locales map[string]map[string]string
	tags    []language.Tag
	names   []string
	matcher language.Matcher
	builder *catalog.Builder
}

// LoadEmbedded loads the catalogs bundled with the package.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedLocales)
}

// MustLoadEmbedded panics when the bundled catalogs are invalid.
func MustLoadEmbedded() *Bundle {
	b, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	return b
}

// LoadFromFS loads locales/<locale>/<namespace>.yaml files from fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("messages: glob catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("messages: no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{locales: make(map[string]map[string]string)}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("messages: read %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("messages: parse %s: %w", path, err)
		}
		if err := b.add(path, file); err != nil {
			return nil, err
		}
	}

	if _, ok := b.locales[BaseLocale]; !ok {
		return nil, fmt.Errorf("messages: base locale %s is not defined", BaseLocale)
	}
	if err := b.build(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) add(path string, file catalogFile) error {
	dirLocale := filepath.Base(filepath.Dir(path))
	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return fmt.Errorf("messages: %s: locale is required", path)
	}
	if locale != dirLocale {
		return fmt.Errorf("messages: %s: locale %q does not match directory %q", path, locale, dirLocale)
	}
	if strings.TrimSpace(file.Namespace) == "" {
		return fmt.Errorf("messages: %s: namespace is required", path)
	}

	msgs, ok := b.locales[locale]
	if !ok {
		msgs = make(map[string]string)
		b.locales[locale] = msgs
	}
	for key, value := range file.Messages {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			return fmt.Errorf("messages: %s: blank key", path)
		}
		if _, exists := msgs[trimmed]; exists {
			return fmt.Errorf("messages: %s: duplicate key %q in %s", path, trimmed, locale)
		}
		msgs[trimmed] = value
	}
	return nil
}

// build registers every locale with an x/text catalog. Keys missing from a
// locale are filled from the base locale.
func (b *Bundle) build() error {
	names := make([]string, 0, len(b.locales))
	for name := range b.locales {
		if name != BaseLocale {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	names = append([]string{BaseLocale}, names...)

	base := b.locales[BaseLocale]
	builder := catalog.NewBuilder(catalog.Fallback(language.Make(BaseLocale)))
	tags := make([]language.Tag, 0, len(names))

	for _, name := range names {
		tag, err := language.Parse(name)
		if err != nil {
			return fmt.Errorf("messages: parse locale %q: %w", name, err)
		}
		tags = append(tags, tag)

		msgs := b.locales[name]
		for key, value := range base {
			if _, ok := msgs[key]; !ok {
				msgs[key] = value
			}
		}
		keys := make([]string, 0, len(msgs))
		for key := range msgs {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if err := builder.SetString(tag, key, msgs[key]); err != nil {
				return fmt.Errorf("messages: register %s/%s: %w", name, key, err)
			}
		}
	}

	b.names = names
	b.tags = tags
	b.matcher = language.NewMatcher(tags)
	b.builder = builder
	return nil
}

// Locales returns the available locales, base locale first.
func (b *Bundle) Locales() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.names...)
}

// Resolve maps a requested locale onto the closest available one.
func (b *Bundle) Resolve(locale string) string {
	if b == nil || len(b.names) == 0 {
		return BaseLocale
	}
	requested, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return BaseLocale
	}
	_, index, confidence := b.matcher.Match(requested)
	if confidence == language.No || index < 0 || index >= len(b.names) {
		return BaseLocale
	}
	return b.names[index]
}

// Printer returns a printer whose Sprintf resolves catalog keys for locale.
func (b *Bundle) Printer(locale string) *message.Printer {
	if b == nil {
		return message.NewPrinter(language.Make(BaseLocale))
	}
	resolved := b.Resolve(locale)
	for i, name := range b.names {
		if name == resolved {
			return message.NewPrinter(b.tags[i], message.Catalog(b.builder))
		}
	}
	return message.NewPrinter(b.tags[0], message.Catalog(b.builder))
}

// Message returns the raw catalog entry for key in locale.
func (b *Bundle) Message(locale, key string) (string, bool) {
	if b == nil {
		return "", false
	}
	msgs, ok := b.locales[b.Resolve(locale)]
	if !ok {
		return "", false
	}
	value, ok := msgs[strings.TrimSpace(key)]
	return value, ok
}
