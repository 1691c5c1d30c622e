package shex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/entityshape/internal/cache"
	"github.com/ppiankov/entityshape/internal/model"
)

// ErrSchemaNotFound is returned when no source has a document for the id
var ErrSchemaNotFound = errors.New("entity schema not found")

var schemaIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store loads ShExJ documents by EntitySchema id ("E10"). A document is looked
// up at {dir}/{id}.json first, then fetched from the URL template.
type Store struct {
	dir         string
	urlTemplate string
	httpClient  *http.Client
	userAgent   string
	cache       cache.Cache
	ttl         time.Duration
	logger      *zap.Logger
}

// urlPlaceholder is replaced by the schema id in the URL template
const urlPlaceholder = "%s"

// NewStore creates a schema store. cache and logger may be nil.
func NewStore(cfg model.SchemaConfig, httpClient *http.Client, userAgent string, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Store {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:         cfg.Dir,
		urlTemplate: cfg.URLTemplate,
		httpClient:  httpClient,
		userAgent:   userAgent,
		cache:       c,
		ttl:         ttl,
		logger:      logger,
	}
}

// Load returns the decoded schema for id
func (s *Store) Load(ctx context.Context, id string) (*model.ShapeSchema, error) {
	data, err := s.Raw(ctx, id)
	if err != nil {
		return nil, err
	}
	schema, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode schema %s: %w", id, err)
	}
	return schema, nil
}

// Raw returns the undecoded ShExJ document for id
func (s *Store) Raw(ctx context.Context, id string) ([]byte, error) {
	id = strings.TrimSpace(id)
	if !schemaIDPattern.MatchString(id) {
		return nil, fmt.Errorf("invalid schema id %q", id)
	}

	if s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read schema %s: %w", id, err)
		}
	}

	if s.urlTemplate == "" {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, id)
	}

	if !strings.Contains(s.urlTemplate, urlPlaceholder) {
		return nil, fmt.Errorf("schema url template %q has no %s placeholder", s.urlTemplate, urlPlaceholder)
	}
	url := strings.ReplaceAll(s.urlTemplate, urlPlaceholder, id)
	key := cache.Key("schema", url)
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			return data, nil
		}
	}

	data, err := s.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch schema %s: %w", id, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(key, data, s.ttl); err != nil {
			s.logger.Warn("cache write failed", zap.String("schema", id), zap.Error(err))
		}
	}
	return data, nil
}

func (s *Store) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrSchemaNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
