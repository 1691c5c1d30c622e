package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/ppiankov/entityshape/internal/model"
)

var entityIDPattern = regexp.MustCompile(`^[QPL][1-9][0-9]*$`)

// Comparer checks one entity against a set of EntitySchemas
type Comparer interface {
	CompareMany(ctx context.Context, schemaIDs []string, entityID, lang string) (*model.MultiReport, error)
}

// CompareJob compares a single entity
type CompareJob struct {
	EntityID  string
	SchemaIDs []string
	Language  string
	Comparer  Comparer
}

// Execute runs the comparison
func (j *CompareJob) Execute(ctx context.Context) Result {
	report, err := j.Comparer.CompareMany(ctx, j.SchemaIDs, j.EntityID, j.Language)
	if err != nil {
		return &CompareResult{EntityID: j.EntityID, Error: err}
	}
	return &CompareResult{EntityID: j.EntityID, Report: report}
}

// CompareResult is the outcome of a CompareJob
type CompareResult struct {
	EntityID string
	Report   *model.MultiReport
	Error    error
}

// GetError returns the error from the comparison
func (r *CompareResult) GetError() error {
	return r.Error
}

// Conforms reports whether every schema comparison succeeded and conforms
func (r *CompareResult) Conforms() bool {
	if r.Error != nil || r.Report == nil {
		return false
	}
	for _, s := range r.Report.Schemas {
		if s.Error != "" || !s.Summary.Conforms {
			return false
		}
	}
	return true
}

// BatchProcessor compares many entities concurrently against the same schemas
type BatchProcessor struct {
	comparer    Comparer
	concurrency int
	schemaIDs   []string
	language    string
	progress    ProgressFunc
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(comparer Comparer, concurrency int, schemaIDs []string, language string) *BatchProcessor {
	return &BatchProcessor{
		comparer:    comparer,
		concurrency: concurrency,
		schemaIDs:   schemaIDs,
		language:    language,
	}
}

// OnProgress registers a per-entity progress callback
func (b *BatchProcessor) OnProgress(fn ProgressFunc) *BatchProcessor {
	b.progress = fn
	return b
}

// ProcessIDs compares the given entities, returning results in input order
func (b *BatchProcessor) ProcessIDs(ctx context.Context, ids []string) []*CompareResult {
	if len(ids) == 0 {
		return []*CompareResult{}
	}

	pool := NewPool(ctx, b.concurrency).OnProgress(b.progress)
	pool.Start()

	for _, id := range ids {
		pool.Submit(&CompareJob{
			EntityID:  id,
			SchemaIDs: b.schemaIDs,
			Language:  b.language,
			Comparer:  b.comparer,
		})
	}

	results := pool.Wait()

	out := make([]*CompareResult, len(results))
	for i, r := range results {
		out[i] = r.(*CompareResult)
	}
	return out
}

// ProcessFile reads entity ids from a file and compares them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*CompareResult, error) {
	ids, err := ReadIDsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read ids: %w", err)
	}
	return b.ProcessIDs(ctx, ids), nil
}

// ReadIDsFromFile reads entity ids (one per line) from a file, or stdin for "-"
func ReadIDsFromFile(filePath string) ([]string, error) {
	if filePath == "-" {
		return ReadIDs(os.Stdin)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadIDs(file)
}

// ReadIDs parses entity ids, skipping blanks and # comments and dropping
// duplicates. Entity IRIs and lowercase ids are normalized ("q42" -> "Q42").
func ReadIDs(r io.Reader) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		id := NormalizeEntityID(text)
		if !entityIDPattern.MatchString(id) {
			return nil, fmt.Errorf("line %d: invalid entity id %q", line, text)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ids: %w", err)
	}
	return ids, nil
}

// NormalizeEntityID strips an entity IRI prefix and uppercases the id
func NormalizeEntityID(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexAny(s, "/#"); i >= 0 {
		s = s[i+1:]
	}
	return strings.ToUpper(s)
}
