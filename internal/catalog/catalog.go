package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/salesloom/internal/logging"
	"github.com/KaramelBytes/salesloom/internal/metrics"
	"github.com/KaramelBytes/salesloom/internal/report"
	"github.com/KaramelBytes/salesloom/internal/sales"
	"github.com/KaramelBytes/salesloom/internal/translate"
)

// TranslatedMarker prefixes every answer produced by open-ended translation
// instead of a fixed computation.
const TranslatedMarker = "[IA]"

// ErrUnknownOperation is returned by Invoke for names not in the catalog.
var ErrUnknownOperation = errors.New("unknown operation")

// Param describes one operation argument.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string|number|integer
	Default     any    `json:"default,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description"`
}

// Operation is one named entry of the catalog.
type Operation struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
	run         func(ctx context.Context, r *Registry, args map[string]any) (*Result, error)
}

// Result is what an invocation returns. Data is nil for text-only operations.
type Result struct {
	ID         string `json:"id"`
	Operation  string `json:"operation"`
	Text       string `json:"text"`
	Data       any    `json:"data,omitempty"`
	Translated bool   `json:"translated"`
}

// Config wires the registry to its collaborators. Translator may be nil, in
// which case consulta_geral fails with a translation error.
type Config struct {
	Translator translate.Translator
	Report     report.Options
	// OutputPath is the default destination of gerar_relatorio_pdf.
	OutputPath string
	// ReportDir confines caller-supplied output paths. Defaults to the
	// directory of OutputPath.
	ReportDir string
}

// Registry maps operation names to their implementation over one table.
type Registry struct {
	table *sales.Table
	cfg   Config
	ops   []*Operation
	index map[string]*Operation
}

// New builds the catalog over t.
func New(t *sales.Table, cfg Config) *Registry {
	if cfg.OutputPath == "" {
		cfg.OutputPath = report.DefaultOutputPath
	}
	if cfg.ReportDir == "" {
		cfg.ReportDir = filepath.Dir(cfg.OutputPath)
	}
	if cfg.Report == (report.Options{}) {
		cfg.Report = report.DefaultOptions()
	}
	r := &Registry{table: t, cfg: cfg, index: map[string]*Operation{}}
	for _, op := range operations() {
		r.ops = append(r.ops, op)
		r.index[op.Name] = op
	}
	return r
}

// Operations returns the catalog in registration order.
func (r *Registry) Operations() []Operation {
	out := make([]Operation, len(r.ops))
	for i, op := range r.ops {
		out[i] = *op
	}
	return out
}

// Lookup returns the named operation.
func (r *Registry) Lookup(name string) (Operation, bool) {
	op, ok := r.index[name]
	if !ok {
		return Operation{}, false
	}
	return *op, true
}

// Invoke runs one operation and returns its typed failure, if any.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (res *Result, err error) {
	op, ok := r.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	id := uuid.NewString()
	log := logging.WithContext(ctx).With(zap.String("operation", name), zap.String("invocation_id", id))
	timer := metrics.NewTimer()
	defer func() {
		if p := recover(); p != nil {
			log.Error("operation panicked", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			res, err = nil, fmt.Errorf("operation %s: internal error: %v", name, p)
		}
		metrics.RecordOperation(name, err, timer.Elapsed())
		if err != nil {
			log.Warn("operation failed", zap.Error(err), zap.Duration("elapsed", timer.Elapsed()))
			return
		}
		log.Info("operation completed", zap.Duration("elapsed", timer.Elapsed()))
	}()

	res, err = op.run(ctx, r, args)
	if err != nil {
		return nil, err
	}
	res.ID = id
	res.Operation = name
	return res, nil
}

// Dispatch is Invoke for callers that only want text: any failure becomes a
// message and the process keeps running.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) string {
	res, err := r.Invoke(ctx, name, args)
	if err != nil {
		return FailureMessage(name, err)
	}
	return res.Text
}

// FailureMessage renders err for an end user.
func FailureMessage(name string, err error) string {
	var perr *ParamError
	var terr *translate.Error
	switch {
	case errors.Is(err, ErrUnknownOperation):
		return fmt.Sprintf("Error: unknown operation %q.", name)
	case errors.As(err, &perr):
		return fmt.Sprintf("Error in %s: invalid parameter %s.", name, perr.Error())
	case errors.As(err, &terr):
		return fmt.Sprintf("Error in %s: the question could not be answered (%v).", name, terr.Err)
	}
	return fmt.Sprintf("Error in %s: %v", name, err)
}
