package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/iudanet/gophsync/internal/models"
)

// Printer выводит результаты команд в text или json формате.
// В json формате каждый результат пишется отдельной строкой.
type Printer struct {
	w      io.Writer
	format string
	mu     sync.Mutex
}

// NewPrinter creates a printer for the given output format.
func NewPrinter(w io.Writer, format string) *Printer {
	return &Printer{w: w, format: format}
}

// EntityView представление сущности в выводе
type EntityView struct {
	Entity  string          `json:"entity"`
	Value   json.RawMessage `json:"value,omitempty"`
	Version uint64          `json:"version"`
	Deleted bool            `json:"deleted,omitempty"`
}

// NewEntityView builds the view of key; nil value means the entity is absent.
func NewEntityView(key models.EntityKey, value models.Value, version uint64) (EntityView, error) {
	view := EntityView{Entity: key.String(), Version: version, Deleted: value == nil}
	if value != nil {
		raw, err := models.EncodeValue(value)
		if err != nil {
			return EntityView{}, err
		}
		view.Value = raw
	}
	return view, nil
}

// Entity печатает сущность: "type:id v3 {...}" или json строку.
func (p *Printer) Entity(key models.EntityKey, value models.Value, version uint64) error {
	view, err := NewEntityView(key, value, version)
	if err != nil {
		return err
	}
	if view.Deleted {
		return p.Emit(view, "%s v%d deleted", view.Entity, view.Version)
	}
	return p.Emit(view, "%s v%d %s", view.Entity, view.Version, view.Value)
}

// Emit печатает v в json формате или строку по format в text формате.
func (p *Printer) Emit(v any, format string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == "json" {
		if err := json.NewEncoder(p.w).Encode(v); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if _, err := fmt.Fprintf(p.w, format+"\n", args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
