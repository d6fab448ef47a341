// Package prompt renders prompt templates and assembles base instructions with
// technique and persona fragments.
package prompt

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"text/template"
)

const templateExt = ".tmpl"

//go:embed templates
var embedded embed.FS

// Vars are the variables a template may reference. Referencing a key that is
// not present is an error.
type Vars map[string]any

// Exchange is one answered question of the conversation history.
type Exchange struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// Renderer turns a template name and variables into text.
type Renderer interface {
	Render(name string, vars Vars) (string, error)
}

// Embedded returns the built-in template set rooted at its category directories.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// TemplateRenderer renders `{category}/{name}.tmpl` files from fsys. Parsed
// templates are kept for reuse; only names that exist in fsys ever enter the
// cache, so it never grows past the size of the template set.
type TemplateRenderer struct {
	fsys fs.FS

	mu     sync.Mutex
	parsed map[string]*template.Template
}

func NewTemplateRenderer(fsys fs.FS) *TemplateRenderer {
	return &TemplateRenderer{fsys: fsys, parsed: map[string]*template.Template{}}
}

// Render executes the template name (without extension) against vars.
func (r *TemplateRenderer) Render(name string, vars Vars) (string, error) {
	tmpl, err := r.lookup(name)
	if err != nil {
		return "", err
	}

	if vars == nil {
		vars = Vars{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", &TemplateError{Name: name, Err: err}
	}

	return strings.TrimSpace(buf.String()), nil
}

// Cached reports how many compiled templates are held.
func (r *TemplateRenderer) Cached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.parsed)
}

func (r *TemplateRenderer) lookup(name string) (*template.Template, error) {
	name = strings.TrimSpace(name)
	if name == "" || !fs.ValidPath(name+templateExt) {
		return nil, &TemplateError{Name: name, Err: errors.New("invalid template name")}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.parsed[name]; ok {
		return tmpl, nil
	}

	data, err := fs.ReadFile(r.fsys, name+templateExt)
	if err != nil {
		return nil, &TemplateError{Name: name, Err: err}
	}

	tmpl, err := template.New(path.Base(name)).
		Funcs(funcs).
		Option("missingkey=error").
		Parse(string(data))
	if err != nil {
		return nil, &TemplateError{Name: name, Err: err}
	}

	r.parsed[name] = tmpl
	return tmpl, nil
}

// TemplateError is a prompt that could not be built.
type TemplateError struct {
	Name string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("render template %q: %v", e.Name, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// IsMissing reports whether the template file does not exist.
func (e *TemplateError) IsMissing() bool {
	return errors.Is(e.Err, fs.ErrNotExist)
}

// UserMessage is safe to show to the person being interviewed.
func (e *TemplateError) UserMessage() string {
	return "The interview prompt could not be prepared. Please try again."
}
