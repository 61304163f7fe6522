// Package pongo2tmpl adapts flosch/pongo2 templates to the invoice template
// renderer.
package pongo2tmpl

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	invoicetemplate "github.com/goliatone/go-invoice/adapters/template"
)

// ContextKey is the name templates use to reach the invoice data.
const ContextKey = "invoice"

// Extension is appended to template names that have none.
const Extension = ".django"

//go:embed templates/*.django
var embedded embed.FS

// Executor executes pongo2 templates by name.
type Executor struct {
	set *pongo2.TemplateSet

	mu    sync.RWMutex
	cache map[string]*pongo2.Template
}

var _ invoicetemplate.TemplateExecutor = (*Executor)(nil)

// NewExecutor creates an executor backed by the embedded invoice templates.
func NewExecutor() *Executor {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return NewFSExecutor(sub)
}

// NewFSExecutor creates an executor loading templates from fsys.
func NewFSExecutor(fsys fs.FS) *Executor {
	return &Executor{
		set:   pongo2.NewSet("invoice", fsLoader{fsys: fsys}),
		cache: make(map[string]*pongo2.Template),
	}
}

// ExecuteTemplate renders a named template into w.
func (e *Executor) ExecuteTemplate(w io.Writer, name string, data any) error {
	if e == nil || e.set == nil {
		return errors.New("pongo2 executor is not configured")
	}
	tpl, err := e.lookup(name)
	if err != nil {
		return err
	}
	return tpl.ExecuteWriter(contextFor(data), w)
}

func (e *Executor) lookup(name string) (*pongo2.Template, error) {
	filename := name
	if path.Ext(filename) == "" {
		filename += Extension
	}

	e.mu.RLock()
	tpl, ok := e.cache[filename]
	e.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	tpl, err := e.set.FromFile(filename)
	if err != nil {
		return nil, fmt.Errorf("pongo2: load %s: %w", filename, err)
	}
	e.mu.Lock()
	e.cache[filename] = tpl
	e.mu.Unlock()
	return tpl, nil
}

func contextFor(data any) pongo2.Context {
	switch v := data.(type) {
	case pongo2.Context:
		return v
	case map[string]any:
		return pongo2.Context(v)
	default:
		return pongo2.Context{ContextKey: data}
	}
}

type fsLoader struct {
	fsys fs.FS
}

func (l fsLoader) Abs(base, name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

func (l fsLoader) Get(name string) (io.Reader, error) {
	return l.fsys.Open(name)
}
