// Package policy evaluates CEL expressions against assembled package records,
// letting callers narrow the status view beyond the fixed toggles.
package policy

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/daimoniac/pkgstatus/internal/errors"
	"github.com/daimoniac/pkgstatus/internal/types"
)

// maxCachedPrograms bounds the number of compiled expressions kept by a Cache
const maxCachedPrograms = 64

// RecordFilter decides whether a record stays in the status view
type RecordFilter interface {
	Matches(record *types.PackageRecord) (bool, error)
}

// Config defines a CEL record filter.
//
// Available variables:
//   - name, version, upstreamVersion, comment: strings
//   - failedRepo, failedArch: location of the current failure, empty without one
//   - firstFail: unix time of the current failure, 0 without one
//   - problems: list of problem strings
//   - requestsFrom, requestsTo: lists of request ids
//   - develProject, develPackage: devel counterpart, empty without one
type Config struct {
	Expression string `yaml:"expression" json:"expression"`
}

// Engine is a compiled record filter. It is safe for concurrent use.
type Engine struct {
	logger     *slog.Logger
	expression string
	program    cel.Program
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("version", cel.StringType),
		cel.Variable("upstreamVersion", cel.StringType),
		cel.Variable("comment", cel.StringType),
		cel.Variable("failedRepo", cel.StringType),
		cel.Variable("failedArch", cel.StringType),
		cel.Variable("firstFail", cel.IntType),
		cel.Variable("problems", cel.ListType(cel.StringType)),
		cel.Variable("requestsFrom", cel.ListType(cel.IntType)),
		cel.Variable("requestsTo", cel.ListType(cel.IntType)),
		cel.Variable("develProject", cel.StringType),
		cel.Variable("develPackage", cel.StringType),
	)
}

// NewEngine compiles config.Expression. Compile errors are permanent errors
// wrapping errors.ErrInvalidInput.
func NewEngine(logger *slog.Logger, config Config) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Expression == "" {
		config.Expression = "true"
	}

	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(config.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.NewPermanent(fmt.Errorf("%w: failed to compile filter expression: %v", errors.ErrInvalidInput, issues.Err()))
	}

	if ast.OutputType() != cel.BoolType {
		return nil, errors.NewPermanent(fmt.Errorf("%w: filter expression must return a boolean, got %v", errors.ErrInvalidInput, ast.OutputType()))
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Engine{
		logger:     logger,
		expression: config.Expression,
		program:    program,
	}, nil
}

// Expression returns the source of the compiled expression
func (e *Engine) Expression() string {
	return e.expression
}

// Matches evaluates the expression for record
func (e *Engine) Matches(record *types.PackageRecord) (bool, error) {
	if record == nil {
		return false, fmt.Errorf("record is nil")
	}

	problems := make([]string, len(record.Problems))
	for i, p := range record.Problems {
		problems[i] = string(p)
	}

	out, _, err := e.program.Eval(map[string]interface{}{
		"name":            record.Name,
		"version":         record.Version,
		"upstreamVersion": record.UpstreamVersion,
		"comment":         record.FailedComment,
		"failedRepo":      record.FailedRepository,
		"failedArch":      record.FailedArchitecture,
		"firstFail":       record.FirstFail,
		"problems":        problems,
		"requestsFrom":    record.RequestsFrom,
		"requestsTo":      record.RequestsTo,
		"develProject":    record.DevelProject,
		"develPackage":    record.DevelPackage,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate filter for %s: %w", record.Name, err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter expression did not return a boolean: %v", out.Value())
	}
	return matched, nil
}

// Cache keeps compiled engines by expression text
type Cache struct {
	mu      sync.Mutex
	logger  *slog.Logger
	engines map[string]*Engine
}

// NewCache creates an empty engine cache
func NewCache(logger *slog.Logger) *Cache {
	return &Cache{
		logger:  logger,
		engines: make(map[string]*Engine),
	}
}

// Get returns the compiled engine for expression, compiling it on first use.
// An empty expression returns nil.
func (c *Cache) Get(expression string) (*Engine, error) {
	if expression == "" {
		return nil, nil
	}

	c.mu.Lock()
	engine, ok := c.engines[expression]
	c.mu.Unlock()
	if ok {
		return engine, nil
	}

	engine, err := NewEngine(c.logger, Config{Expression: expression})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.engines) >= maxCachedPrograms {
		c.engines = make(map[string]*Engine)
	}
	c.engines[expression] = engine
	return engine, nil
}
