package wikidata

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/entityshape/internal/model"
)

// MaxLabelBatch is the number of ids sent per wbgetentities call. The API
// limit for anonymous clients is 50.
const MaxLabelBatch = 49

// labelFetchWorkers bounds concurrent wbgetentities calls
const labelFetchWorkers = 4

// LabelResolver looks up property labels, batching requests and caching
// results for the life of the process
type LabelResolver struct {
	client    *Client
	batchSize int
	labels    *gocache.Cache
}

// NewLabelResolver creates a resolver. batchSize is clamped to [1, MaxLabelBatch].
func NewLabelResolver(client *Client, batchSize int, ttl time.Duration) *LabelResolver {
	if batchSize <= 0 || batchSize > MaxLabelBatch {
		batchSize = MaxLabelBatch
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LabelResolver{
		client:    client,
		batchSize: batchSize,
		labels:    gocache.New(ttl, time.Hour),
	}
}

// Labels returns a display name for every id. Ids without a label in lang
// map to "". A failed batch fails the whole call.
func (r *LabelResolver) Labels(ctx context.Context, ids []model.PropertyID, lang string) (map[model.PropertyID]string, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = "en"
	}

	out := make(map[model.PropertyID]string, len(ids))
	var missing []model.PropertyID
	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		if v, ok := r.labels.Get(labelKey(lang, id)); ok {
			out[id] = v.(string)
			continue
		}
		out[id] = ""
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	batches := Batches(missing, r.batchSize)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(labelFetchWorkers)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			found, err := r.fetchBatch(gctx, batch, lang)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range batch {
				label := found[id]
				out[id] = label
				r.labels.SetDefault(labelKey(lang, id), label)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve labels: %w", err)
	}

	r.client.logger.Debug("resolved labels",
		zap.Int("requested", len(ids)),
		zap.Int("fetched", len(missing)),
		zap.Int("batches", len(batches)))
	return out, nil
}

func (r *LabelResolver) fetchBatch(ctx context.Context, ids []model.PropertyID, lang string) (map[model.PropertyID]string, error) {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}

	query := url.Values{}
	query.Set("action", "wbgetentities")
	query.Set("ids", strings.Join(names, "|"))
	query.Set("props", "labels")
	query.Set("languages", lang)

	data, err := r.client.api(ctx, query)
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(data)
	if apiErr := root.Get("error.info"); apiErr.Exists() {
		return nil, fmt.Errorf("wbgetentities: %s", apiErr.String())
	}

	found := make(map[model.PropertyID]string, len(ids))
	root.Get("entities").ForEach(func(key, value gjson.Result) bool {
		label := value.Get("labels." + gjson.Escape(lang) + ".value").String()
		found[model.PropertyID(key.String())] = label
		return true
	})
	return found, nil
}

func labelKey(lang string, id model.PropertyID) string {
	return lang + ":" + string(id)
}

// Batches splits ids into consecutive groups of at most size
func Batches[T any](ids []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	var out [][]T
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
