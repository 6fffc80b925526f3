// Package search implements advanced collection search: SQL pre-filtering in
// the datastore followed by fuzzy re-ranking of taxonomy text, with facet
// counts, a short-lived per-user result cache and per-user query history.
package search

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sahilm/fuzzy"

	"github.com/fancyplanties/fancy-planties/internal/conf"
	"github.com/fancyplanties/fancy-planties/internal/datastore"
	"github.com/fancyplanties/fancy-planties/internal/logging"
	"github.com/fancyplanties/fancy-planties/internal/observability/metrics"
)

// Field weights and bonuses for fuzzy ranking. Common names rank above
// botanical names, which rank above cultivar-only matches.
const (
	weightCommonName = 1.0
	weightBotanical  = 0.9
	weightCultivar   = 0.8

	exactBonus  = 100.0
	prefixBonus = 50.0
)

// Request describes one search over a user's collection.
type Request struct {
	Query     string `json:"query"`     // fuzzy-matched against taxonomy text
	Family    string `json:"family"`    // exact family filter
	Location  string `json:"location"`  // exact location filter
	Status    string `json:"status"`    // "active", "inactive" or ""
	CareDue   bool   `json:"careDue"`   // only instances with overdue fertilizer
	DateStart string `json:"dateStart"` // created-at range, YYYY-MM-DD
	DateEnd   string `json:"dateEnd"`
	Page      int    `json:"page"`
	PerPage   int    `json:"perPage"`
	SortBy    string `json:"sortBy"` // ignored when Query is set; relevance wins
}

// Hit is one search result with its relevance score. Score is zero for
// non-fuzzy (filter-only) searches.
type Hit struct {
	Instance datastore.PlantInstance `json:"instance"`
	Score    float64                 `json:"score"`
}

// Response is the result of one search.
type Response struct {
	Results     []Hit            `json:"results"`
	Total       int              `json:"total"`
	Pages       int              `json:"pages"`
	CurrentPage int              `json:"currentPage"`
	Facets      datastore.Facets `json:"facets"`
}

// Service executes searches against the datastore.
type Service struct {
	ds       datastore.Interface
	settings *conf.Settings
	cache    *cache.Cache
	history  *historyStore
	metrics  *metrics.SearchMetrics
	logger   *slog.Logger
}

// SetMetrics attaches query metrics. A nil field disables recording.
func (s *Service) SetMetrics(m *metrics.SearchMetrics) {
	s.metrics = m
}

// New creates a search service with its result cache and history ring.
func New(ds datastore.Interface, settings *conf.Settings) *Service {
	ttl := time.Duration(settings.Search.CacheTTL) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &Service{
		ds:       ds,
		settings: settings,
		cache:    cache.New(ttl, 2*ttl),
		history:  newHistoryStore(settings.Search.HistorySize),
		logger:   logging.ForService("search"),
	}
}

// Search runs one search for a user. Results are cached per user and query;
// non-empty query text is recorded in the user's history.
func (s *Service) Search(userID uint, req *Request) (*Response, error) {
	s.normalize(req)

	key := cacheKey(userID, req)
	if cached, found := s.cache.Get(key); found {
		if resp, ok := cached.(*Response); ok {
			return resp, nil
		}
	}

	start := time.Now()
	resp, err := s.run(userID, req)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordQuery(req.Query != "", len(resp.Results), time.Since(start))
	}

	s.cache.Set(key, resp, cache.DefaultExpiration)
	if q := strings.TrimSpace(req.Query); q != "" {
		s.history.Record(userID, q)
	}
	return resp, nil
}

// History returns the user's recent query strings, most recent first.
func (s *Service) History(userID uint) []string {
	return s.history.List(userID)
}

// Invalidate drops all cached results for a user. Called after any mutation
// of the user's instances or propagations.
func (s *Service) Invalidate(userID uint) {
	prefix := fmt.Sprintf("u%d:", userID)
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Delete(key)
		}
	}
}

func (s *Service) normalize(req *Request) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 {
		req.PerPage = s.settings.Search.DefaultPerPage
	}
	if req.PerPage < 1 {
		req.PerPage = 20
	}
	if req.PerPage > s.maxResults() {
		req.PerPage = s.maxResults()
	}
	req.Query = strings.TrimSpace(req.Query)
}

func (s *Service) maxResults() int {
	if s.settings.Search.MaxResults > 0 {
		return s.settings.Search.MaxResults
	}
	return 500
}

func (s *Service) run(userID uint, req *Request) (*Response, error) {
	filters := &datastore.InstanceFilters{
		Location:     req.Location,
		ActiveOnly:   req.Status == "active",
		InactiveOnly: req.Status == "inactive",
		OverdueOnly:  req.CareDue,
		DateStart:    req.DateStart,
		DateEnd:      req.DateEnd,
		SortBy:       req.SortBy,
	}

	// Fuzzy ranking and the family filter need the full SQL-filtered set;
	// plain filter searches page in the database instead.
	inMemory := req.Query != "" || req.Family != ""
	if inMemory {
		filters.Page = 1
		filters.PerPage = s.maxResults()
	} else {
		filters.Page = req.Page
		filters.PerPage = req.PerPage
	}

	instances, total, err := s.ds.FilterPlantInstances(userID, filters)
	if err != nil {
		return nil, fmt.Errorf("search pre-filter: %w", err)
	}

	facets, err := s.ds.InstanceFacets(userID)
	if err != nil {
		return nil, fmt.Errorf("search facets: %w", err)
	}

	var hits []Hit
	if inMemory {
		hits = rank(instances, req.Query, req.Family)
		total = int64(len(hits))
		hits = page(hits, req.Page, req.PerPage)
	} else {
		hits = make([]Hit, 0, len(instances))
		for i := range instances {
			hits = append(hits, Hit{Instance: instances[i]})
		}
	}

	pages := (int(total) + req.PerPage - 1) / req.PerPage
	if pages < 1 {
		pages = 1
	}

	return &Response{
		Results:     hits,
		Total:       int(total),
		Pages:       pages,
		CurrentPage: req.Page,
		Facets:      facets,
	}, nil
}

// rank applies the family filter and fuzzy-scores instances against the
// query, best first. With no query text every family match scores zero and
// keeps its SQL ordering.
func rank(instances []datastore.PlantInstance, query, family string) []Hit {
	hits := make([]Hit, 0, len(instances))
	for i := range instances {
		inst := &instances[i]
		if family != "" && !strings.EqualFold(inst.Plant.Family, family) {
			continue
		}
		if query == "" {
			hits = append(hits, Hit{Instance: *inst})
			continue
		}
		if score, ok := scoreInstance(inst, query); ok {
			hits = append(hits, Hit{Instance: *inst, Score: score})
		}
	}

	if query != "" {
		sortHits(hits)
	}
	return hits
}

// scoreInstance returns the best weighted fuzzy score of the query against
// the instance's taxonomy fields and nickname.
func scoreInstance(inst *datastore.PlantInstance, query string) (float64, bool) {
	fields := []struct {
		text   string
		weight float64
	}{
		{inst.Plant.CommonName, weightCommonName},
		{inst.Plant.BotanicalName(), weightBotanical},
		{inst.Plant.Cultivar, weightCultivar},
		{inst.Nickname, weightCommonName},
	}

	best := 0.0
	matched := false
	for _, f := range fields {
		if f.text == "" {
			continue
		}
		score, ok := scoreField(f.text, query)
		if !ok {
			continue
		}
		matched = true
		if weighted := score * f.weight; weighted > best {
			best = weighted
		}
	}
	return best, matched
}

func scoreField(text, query string) (float64, bool) {
	matches := fuzzy.Find(query, []string{text})
	if len(matches) == 0 {
		return 0, false
	}

	score := float64(matches[0].Score)
	lowText, lowQuery := strings.ToLower(text), strings.ToLower(query)
	switch {
	case lowText == lowQuery:
		score += exactBonus
	case strings.HasPrefix(lowText, lowQuery):
		score += prefixBonus
	}
	return score, true
}

// sortHits orders by score descending, breaking ties by instance id so the
// ordering is stable across runs.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Instance.ID < hits[j].Instance.ID
	})
}

func page(hits []Hit, pageNum, perPage int) []Hit {
	start := (pageNum - 1) * perPage
	if start >= len(hits) {
		return []Hit{}
	}
	end := start + perPage
	if end > len(hits) {
		end = len(hits)
	}
	return hits[start:end]
}

// cacheKey derives a stable key from the user id and the canonical request.
func cacheKey(userID uint, req *Request) string {
	data, err := json.Marshal(req)
	if err != nil {
		data = []byte(fmt.Sprintf("%+v", req))
	}
	return fmt.Sprintf("u%d:%x", userID, sha256.Sum256(data))
}
