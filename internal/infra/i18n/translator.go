package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var LocalesFS embed.FS

// Translator renders message templates for one language. Templates are
// fmt format strings keyed by message id.
type Translator struct {
	lang     string
	messages map[string]string
}

// New loads the embedded catalogue for lang, e.g. "en" or "ru".
func New(lang string) (*Translator, error) {
	return NewTranslator(LocalesFS, lang)
}

func NewTranslator(fsys fs.FS, lang string) (*Translator, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = "en"
	}
	p := path.Join("locales", lang+".yaml")
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return nil, fmt.Errorf("read translation file %s: %w", p, err)
	}
	t, err := newTranslatorFromBytes(data)
	if err != nil {
		return nil, err
	}
	t.lang = lang
	return t, nil
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var messages map[string]string
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse translation file: %w", err)
	}
	return &Translator{messages: messages}, nil
}

// T returns the template for key formatted with args, or key itself when
// the catalogue has no such entry.
func (t *Translator) T(key string, args ...any) string {
	format, ok := t.messages[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

func (t *Translator) Lang() string { return t.lang }
