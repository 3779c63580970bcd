package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/benchmark-cli/internal/analyzer"
	"github.com/sells-group/benchmark-cli/internal/config"
	"github.com/sells-group/benchmark-cli/internal/fetcher"
	"github.com/sells-group/benchmark-cli/internal/model"
	"github.com/sells-group/benchmark-cli/internal/resilience"
	"github.com/sells-group/benchmark-cli/internal/store"
)

type fakeAnalysisStore struct {
	mu    sync.Mutex
	facts []model.Fact
}

func (f *fakeAnalysisStore) InsertFact(_ context.Context, fact *model.Fact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.facts = append(f.facts, *fact)
	return fact.ID, nil
}

func (f *fakeAnalysisStore) QueryFacts(context.Context, model.FactFilter) ([]model.Fact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Fact(nil), f.facts...), nil
}

func (f *fakeAnalysisStore) InsertRecommendation(context.Context, string, string) (string, error) {
	return "", nil
}

func (f *fakeAnalysisStore) ListRecommendations(context.Context, store.RecommendationFilter) ([]model.Recommendation, error) {
	return nil, nil
}

func newTestAnalysis(st *fakeAnalysisStore) *Analysis {
	retry := resilience.Default()
	retry.MaxAttempts = 1
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 2 * time.Second, Retry: retry})
	a := analyzer.New(config.AnalyzerConfig{PromptVersion: "v1"}, analyzer.NewMock())
	return NewAnalysis(f, a, st, 2)
}

func TestAnalysis_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><script>bad</script>Rate is 7.9%</body></html>`))
	}))
	defer srv.Close()

	st := &fakeAnalysisStore{}
	p := newTestAnalysis(st)

	results, err := p.Run(context.Background(), model.Task{
		Competitor: "alfa",
		Product:    "credits",
		Criterion:  "rate",
		URLs:       []string{srv.URL},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Err)
	assert.Equal(t, "Rate is 7.9%", results[0].CleanedText)

	require.Len(t, st.facts, 1)
	fact := st.facts[0]
	assert.Equal(t, "alfa", fact.Competitor)
	assert.Equal(t, "credits", fact.Product)
	assert.Equal(t, "rate", fact.Criterion)
	assert.Equal(t, "Rate is 7.9%", fact.Value)
	require.NotNil(t, fact.Confidence)
	assert.GreaterOrEqual(t, *fact.Confidence, 0.6)
	assert.LessOrEqual(t, *fact.Confidence, 0.95)
}

func TestAnalysis_FailureIsolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><body>Rate is 7.9%</body></html>`))
	}))
	defer srv.Close()

	st := &fakeAnalysisStore{}
	p := newTestAnalysis(st)

	results, err := p.Run(context.Background(), model.Task{
		Competitor: "alfa",
		Product:    "credits",
		Criterion:  "rate",
		URLs:       []string{srv.URL + "/bad", srv.URL + "/good"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NotEmpty(t, results[0].Err)
	assert.Empty(t, results[1].Err)
	assert.Len(t, st.facts, 1)
}

func TestAnalysis_EmptyContentSkipsAnalysis(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><style>.a{}</style></head><body><script>x()</script></body></html>`))
	}))
	defer srv.Close()

	st := &fakeAnalysisStore{}
	p := newTestAnalysis(st)

	results, err := p.Run(context.Background(), model.Task{
		Competitor: "alfa",
		Product:    "credits",
		Criterion:  "rate",
		URLs:       []string{srv.URL},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "no usable content", results[0].Err)
	assert.Empty(t, st.facts)
}

func TestAnalysis_InvalidTask(t *testing.T) {
	p := newTestAnalysis(&fakeAnalysisStore{})

	_, err := p.Run(context.Background(), model.Task{Product: "credits", Criterion: "rate", URLs: []string{"http://x"}})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "competitor", verr.Field)
}
