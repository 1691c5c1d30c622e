package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/entityshape/internal/cache"
	"github.com/ppiankov/entityshape/internal/compare"
	"github.com/ppiankov/entityshape/internal/model"
	"github.com/ppiankov/entityshape/internal/score"
	"github.com/ppiankov/entityshape/internal/shex"
	"github.com/ppiankov/entityshape/internal/util"
	"github.com/ppiankov/entityshape/internal/wikidata"
	"github.com/ppiankov/entityshape/internal/worker"
)

// EntitySource supplies normalized entities
type EntitySource interface {
	Entity(ctx context.Context, id string) (*model.Entity, error)
}

// SchemaSource supplies decoded schemas by EntitySchema id
type SchemaSource interface {
	Load(ctx context.Context, id string) (*model.ShapeSchema, error)
}

// LabelSource resolves property display names
type LabelSource interface {
	Labels(ctx context.Context, ids []model.PropertyID, lang string) (map[model.PropertyID]string, error)
}

// Pipeline orchestrates fetch, comparison, labelling and scoring
type Pipeline struct {
	entities EntitySource
	schemas  SchemaSource
	labels   LabelSource
	scorer   *score.Scorer
	renderer *Renderer
	config   *model.Config
	logger   *zap.Logger
}

// NewPipeline wires the Wikidata client, schema store and label resolver from cfg
func NewPipeline(cfg *model.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := util.NewHTTPClient(cfg.Wikidata.Timeout, cfg.HTTP)
	responses := cache.New(cfg.Cache)

	opts := []wikidata.Option{
		wikidata.WithCache(responses, cfg.Cache.DiskTTL),
		wikidata.WithLimiter(worker.NewLimiter(cfg.Wikidata.RequestsPerSecond, cfg.Wikidata.Burst)),
		wikidata.WithLogger(logger.Named("wikidata")),
	}
	if cfg.Wikidata.RespectRobots {
		opts = append(opts, wikidata.WithRobots(util.NewRobotsChecker(cfg.Wikidata.UserAgent, httpClient)))
	}
	client := wikidata.NewClient(cfg.Wikidata, httpClient, opts...)

	return New(
		client,
		shex.NewStore(cfg.Schemas, httpClient, cfg.Wikidata.UserAgent, responses, cfg.Cache.DiskTTL, logger.Named("schemas")),
		wikidata.NewLabelResolver(client, cfg.Wikidata.LabelBatchSize, cfg.Cache.LabelTTL),
		cfg,
		logger,
	)
}

// New assembles a pipeline from its collaborators
func New(entities EntitySource, schemas SchemaSource, labels LabelSource, cfg *model.Config, logger *zap.Logger) *Pipeline {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		entities: entities,
		schemas:  schemas,
		labels:   labels,
		scorer:   score.NewScorer(),
		renderer: NewRenderer(),
		config:   cfg,
		logger:   logger,
	}
}

// Renderer returns the pipeline's report renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// Compare checks one entity against one EntitySchema
func (p *Pipeline) Compare(ctx context.Context, schemaID, entityID, lang string) (*model.Report, error) {
	lang = p.language(lang)

	var (
		schema *model.ShapeSchema
		entity *model.Entity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		schema, err = p.schemas.Load(gctx, schemaID)
		if err != nil {
			return fmt.Errorf("load schema: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		entity, err = p.entities.Entity(gctx, entityID)
		if err != nil {
			return fmt.Errorf("fetch entity: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := p.build(schemaID, schema, entity, lang)
	if err := p.applyLabels(ctx, lang, report); err != nil {
		return nil, err
	}
	return report, nil
}

// CompareMany checks one entity against several EntitySchemas. The entity is
// fetched once; schemas are loaded and compared in parallel. A schema that
// fails to load yields a report carrying the error instead of failing the call.
func (p *Pipeline) CompareMany(ctx context.Context, schemaIDs []string, entityID, lang string) (*model.MultiReport, error) {
	lang = p.language(lang)
	schemaIDs = dedupe(schemaIDs)
	if len(schemaIDs) == 0 {
		return nil, errors.New("no schema ids given")
	}

	entity, err := p.entities.Entity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("fetch entity: %w", err)
	}

	reports := make([]*model.Report, len(schemaIDs))
	workers := p.config.Concurrency.SchemaWorkers
	if workers <= 0 {
		workers = 1
	}
	cp := pool.New().WithMaxGoroutines(workers)
	for i, id := range schemaIDs {
		i, id := i, id
		cp.Go(func() {
			schema, err := p.schemas.Load(ctx, id)
			if err != nil {
				p.logger.Warn("schema load failed", zap.String("schema", id), zap.Error(err))
				reports[i] = &model.Report{
					Schema:      id,
					Entity:      entity.ID,
					Language:    lang,
					GeneratedAt: time.Now().UTC(),
					Error:       err.Error(),
				}
				return
			}
			reports[i] = p.build(id, schema, entity, lang)
		})
	}
	cp.Wait()

	if err := p.applyLabels(ctx, lang, reports...); err != nil {
		return nil, err
	}
	return &model.MultiReport{Entity: entity.ID, Schemas: reports}, nil
}

func (p *Pipeline) build(schemaID string, schema *model.ShapeSchema, entity *model.Entity, lang string) *model.Report {
	start := time.Now()
	comparison := compare.Build(schema, entity, compare.BuildOptions{
		OmitNotInSchema: p.config.Output.OmitNotInSchema,
	})

	report := &model.Report{
		Schema:      schemaID,
		Name:        shex.ShapeLabel(schema.StartShapeID),
		Entity:      entity.ID,
		Language:    lang,
		GeneratedAt: time.Now().UTC(),
		Properties:  comparison.Properties,
		Statements:  comparison.Statements,
		Summary:     p.scorer.Calculate(comparison),
	}

	p.logger.Debug("comparison built",
		zap.String("schema", schemaID),
		zap.String("entity", entity.ID),
		zap.Int("properties", len(report.Properties)),
		zap.Int("statements", len(report.Statements)),
		zap.Bool("conforms", report.Summary.Conforms),
		zap.Duration("took", time.Since(start)))
	return report
}

// applyLabels resolves names for every property in the reports with one lookup
func (p *Pipeline) applyLabels(ctx context.Context, lang string, reports ...*model.Report) error {
	seen := make(map[model.PropertyID]bool)
	var ids []model.PropertyID
	for _, r := range reports {
		for id := range r.Properties {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 || p.labels == nil {
		return nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	names, err := p.labels.Labels(ctx, ids, lang)
	if err != nil {
		return fmt.Errorf("resolve labels: %w", err)
	}
	for _, r := range reports {
		for id, prop := range r.Properties {
			prop.Name = names[id]
			r.Properties[id] = prop
		}
	}
	return nil
}

func (p *Pipeline) language(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = p.config.Wikidata.Language
	}
	if lang == "" {
		lang = "en"
	}
	return lang
}

// SplitIDs splits a comma and/or whitespace separated id list ("E10, E236")
func SplitIDs(s string) []string {
	return dedupe(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	}))
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
