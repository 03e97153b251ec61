package matching

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/skill-gap/internal/nlp"
)

const testResume = `Jane Smith
Senior backend engineer with eight years of experience building distributed services.
• Designed REST APIs in Python and SQL backed storage layers
• Shipped Docker images to managed cloud infrastructure
• Led natural language processing research for support tickets
Skills: python, sql, docker
`

const testJob = `We are hiring a backend engineer to build machine learning services.
You will own Python services, SQL schemas, container tooling on Kubernetes,
and collaborate with research on NLP features for our support product.`

// distinctEmbedder gives every distinct text its own axis, so nothing is
// semantically similar to anything else. Vectors are stable per instance.
type distinctEmbedder struct {
	mu    sync.Mutex
	axes  map[string]int
	calls int
	texts []string
}

const distinctDims = 128

func (d *distinctEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.axes == nil {
		d.axes = map[string]int{}
	}
	d.calls++
	d.texts = append(d.texts, texts...)

	out := make([][]float32, len(texts))
	for i, text := range texts {
		axis, ok := d.axes[text]
		if !ok {
			axis = len(d.axes) % distinctDims
			d.axes[text] = axis
		}
		v := make([]float32, distinctDims)
		v[axis] = 1
		out[i] = v
	}
	return out, nil
}

// conceptEmbedder maps texts onto concept axes by keyword containment.
type conceptEmbedder struct {
	concepts [][]string
}

func (c conceptEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, len(c.concepts)+1)
		v[len(c.concepts)] = 0.01
		for axis, keywords := range c.concepts {
			for _, kw := range keywords {
				if strings.Contains(text, kw) {
					v[axis]++
				}
			}
		}
		out[i] = v
	}
	return out, nil
}

type failingEmbedder struct{ err error }

func (f failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, f.err
}

type nonFiniteEmbedder struct{ value float32 }

func (n nonFiniteEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{n.value, 1}
	}
	return out, nil
}

type shortEmbedder struct{}

func (shortEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)-1), nil
}

func newTestEngine(t *testing.T, embedder Embedder, opts ...Option) *Engine {
	t.Helper()
	engine, err := New(embedder, opts...)
	require.NoError(t, err)
	return engine
}

func TestMatchGuards(t *testing.T) {
	tests := []struct {
		name      string
		resume    string
		job       string
		reasoning Reasoning
	}{
		{name: "empty resume", resume: "", job: testJob, reasoning: ReasoningEmptyInput},
		{name: "whitespace job", resume: testResume, job: " \n\t", reasoning: ReasoningEmptyInput},
		{name: "short resume", resume: "Python developer with SQL skills", job: strings.Repeat("backend engineering role ", 70), reasoning: ReasoningInsufficientLength},
		{name: "short job", resume: testResume, job: "Python and SQL", reasoning: ReasoningInsufficientLength},
		{name: "punctuation resume", resume: strings.Repeat("!!! ", 25), job: testJob, reasoning: ReasoningEmptyInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := &distinctEmbedder{}
			engine := newTestEngine(t, embedder)

			skills := []string{"SQL", "Python"}
			res, err := engine.Match(context.Background(), Request{
				ResumeText:         tt.resume,
				JobDescriptionText: tt.job,
				TargetSkills:       skills,
			})
			require.NoError(t, err)

			assert.Equal(t, 0.0, res.Score)
			assert.Equal(t, []string{"SQL", "Python"}, res.MissingSkills)
			assert.Equal(t, tt.reasoning, res.Reasoning)
			assert.True(t, res.Reasoning.IsGuard())
			assert.Zero(t, embedder.calls, "guards must not reach the embedder")

			res.MissingSkills[0] = "changed"
			assert.Equal(t, "SQL", skills[0], "guard result must not alias the request")
		})
	}
}

func TestMatchGuardWithNilSkills(t *testing.T) {
	engine := newTestEngine(t, &distinctEmbedder{})

	res, err := engine.Match(context.Background(), Request{JobDescriptionText: testJob})
	require.NoError(t, err)
	assert.NotNil(t, res.MissingSkills)
	assert.Empty(t, res.MissingSkills)
}

func TestMatchLexicalShortCircuit(t *testing.T) {
	embedder := &distinctEmbedder{}
	engine := newTestEngine(t, embedder)

	res, err := engine.Match(context.Background(), Request{
		ResumeText:         testResume,
		JobDescriptionText: testJob,
		TargetSkills:       []string{"Docker"},
	})
	require.NoError(t, err)

	assert.Empty(t, res.MissingSkills)
	require.Len(t, res.Evidence, 1)
	assert.True(t, res.Evidence[0].LexicalHit)
	assert.Zero(t, res.Evidence[0].MaxSemanticSimilarity)

	chunks := nlp.Chunk(testResume, nlp.ChunkOptions{SkillsSection: true})
	assert.Len(t, embedder.texts, 2+len(chunks), "no variant of a lexical hit is embedded")
	assert.Equal(t, 1, embedder.calls)
}

func TestDecideSkipsEmbedderWhenEverySkillIsLexical(t *testing.T) {
	chunks := nlp.Chunk(testResume, nlp.ChunkOptions{})
	evidence, err := Decide(context.Background(), failingEmbedder{err: errors.New("down")},
		[]string{"Docker", "python"}, testResume, chunks, DefaultSimilarityThreshold)
	require.NoError(t, err)

	assert.Empty(t, MissingSkills(evidence))
}

func TestDecideAndMatchAgree(t *testing.T) {
	skills := []string{"Docker", "Rust", "machine learning"}
	embedder := conceptEmbedder{concepts: [][]string{{"docker", "container"}, {"rust"}, {"machine learning", "research"}}}

	chunks := nlp.Chunk(testResume, nlp.ChunkOptions{SkillsSection: true})
	evidence, err := Decide(context.Background(), embedder, skills, testResume, chunks, DefaultSimilarityThreshold)
	require.NoError(t, err)

	res, err := newTestEngine(t, embedder).Match(context.Background(), Request{
		ResumeText:         testResume,
		JobDescriptionText: testJob,
		TargetSkills:       skills,
	})
	require.NoError(t, err)

	assert.Equal(t, MissingSkills(evidence), res.MissingSkills)
	assert.Equal(t, evidence, res.Evidence)
}

func TestMatchSynonymKeepsOriginalLabel(t *testing.T) {
	engine := newTestEngine(t, &distinctEmbedder{})

	res, err := engine.Match(context.Background(), Request{
		ResumeText:         testResume,
		JobDescriptionText: testJob,
		TargetSkills:       []string{"NLP", "Kubernetes"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Kubernetes"}, res.MissingSkills)
	assert.True(t, res.Evidence[0].LexicalHit)
	assert.Contains(t, res.Evidence[0].NormalizedForms, "natural language processing")
	assert.NotContains(t, res.MissingSkills, "nlp")
}

func TestMatchPreservesOrderAndCasing(t *testing.T) {
	engine := newTestEngine(t, &distinctEmbedder{})

	res, err := engine.Match(context.Background(), Request{
		ResumeText:         testResume,
		JobDescriptionText: testJob,
		TargetSkills:       []string{"Kubernetes", "python", "Rust", "SQL", "TypeScript"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Kubernetes", "Rust", "TypeScript"}, res.MissingSkills)
	require.Len(t, res.Evidence, 5)
	for i, skill := range []string{"Kubernetes", "python", "Rust", "SQL", "TypeScript"} {
		assert.Equal(t, skill, res.Evidence[i].OriginalSkill)
	}
}

func TestMatchSemanticFallback(t *testing.T) {
	embedder := conceptEmbedder{concepts: [][]string{
		{"cloud", "azure", "aws"},
		{"rust"},
		{"engineer", "services", "backend"},
	}}
	engine := newTestEngine(t, embedder)

	res, err := engine.Match(context.Background(), Request{
		ResumeText:         testResume,
		JobDescriptionText: testJob,
		TargetSkills:       []string{"Azure", "Rust"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Rust"}, res.MissingSkills)

	azure := res.Evidence[0]
	assert.False(t, azure.LexicalHit)
	assert.True(t, azure.Present)
	assert.GreaterOrEqual(t, azure.MaxSemanticSimilarity, DefaultSimilarityThreshold)

	rust := res.Evidence[1]
	assert.False(t, rust.Present)
	assert.Less(t, rust.MaxSemanticSimilarity, DefaultSimilarityThreshold)
}

func TestMatchThresholdIsTunable(t *testing.T) {
	embedder := conceptEmbedder{concepts: [][]string{{"cloud", "azure"}, {"data"}}}
	resume := "Administrator of private cloud data centers and office networks with a long record of keeping services stable for many users across several sites and time zones"

	tests := []struct {
		threshold float64
		missing   []string
	}{
		{threshold: DefaultSimilarityThreshold, missing: []string{}},
		{threshold: 0.9, missing: []string{"Azure"}},
	}

	for _, tt := range tests {
		policy := DefaultPolicy()
		policy.SimilarityThreshold = tt.threshold
		engine := newTestEngine(t, embedder, WithPolicy(policy), WithSkillsSection(false))

		res, err := engine.Match(context.Background(), Request{
			ResumeText:         resume,
			JobDescriptionText: testJob,
			TargetSkills:       []string{"Azure"},
		})
		require.NoError(t, err)
		assert.Equal(t, tt.missing, res.MissingSkills, "threshold %v", tt.threshold)
		assert.InDelta(t, 0.707, res.Evidence[0].MaxSemanticSimilarity, 0.01)
	}
}

func TestMatchIsIdempotent(t *testing.T) {
	engine := newTestEngine(t, &distinctEmbedder{})
	req := Request{
		ResumeText:         testResume,
		JobDescriptionText: testJob,
		TargetSkills:       []string{"Python", "Go", "Terraform"},
	}

	first, err := engine.Match(context.Background(), req)
	require.NoError(t, err)
	second, err := engine.Match(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, first.Score, 0.0)
	assert.LessOrEqual(t, first.Score, 100.0)
}

func TestMatchUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		embedder Embedder
	}{
		{name: "embedder error", embedder: failingEmbedder{err: errors.New("connection refused")}},
		{name: "count mismatch", embedder: shortEmbedder{}},
		{name: "nan component", embedder: nonFiniteEmbedder{value: float32(math.NaN())}},
		{name: "inf component", embedder: nonFiniteEmbedder{value: float32(math.Inf(1))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, tt.embedder)
			_, err := engine.Match(context.Background(), Request{
				ResumeText:         testResume,
				JobDescriptionText: testJob,
				TargetSkills:       []string{"Rust"},
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMatchingUnavailable)
		})
	}
}

func TestMatchRejectsBlankSkill(t *testing.T) {
	engine := newTestEngine(t, &distinctEmbedder{})

	_, err := engine.Match(context.Background(), Request{
		ResumeText:         testResume,
		JobDescriptionText: testJob,
		TargetSkills:       []string{"Python", "   "},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMatchValidatesSkillsBeforeMatching(t *testing.T) {
	engine := newTestEngine(t, &distinctEmbedder{})

	_, err := engine.Match(context.Background(), Request{
		ResumeText:         testResume,
		JobDescriptionText: testJob,
		TargetSkills:       []string{"  "},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	res, err := engine.Match(context.Background(), Request{
		ResumeText:         testResume,
		JobDescriptionText: testJob,
		TargetSkills:       []string{"Docker"},
	})
	require.NoError(t, err)
	assert.Empty(t, res.MissingSkills)
}

func TestNewValidatesPolicy(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	policy := DefaultPolicy()
	policy.HighAlignment = 0.4
	_, err = New(&distinctEmbedder{}, WithPolicy(policy))
	require.Error(t, err)

	policy = DefaultPolicy()
	policy.SimilarityThreshold = 0
	_, err = New(&distinctEmbedder{}, WithPolicy(policy))
	require.Error(t, err)
}

func TestInterpret(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		similarity float64
		score      float64
		reasoning  Reasoning
	}{
		{similarity: 0.8, score: 80, reasoning: ReasoningHigh},
		{similarity: 0.75, score: 75, reasoning: ReasoningModerate},
		{similarity: 0.51, score: 51, reasoning: ReasoningModerate},
		{similarity: 0.5, score: 50, reasoning: ReasoningLow},
		{similarity: 0.123456, score: 12.35, reasoning: ReasoningLow},
		{similarity: -0.3, score: 0, reasoning: ReasoningLow},
		{similarity: 1.4, score: 100, reasoning: ReasoningHigh},
	}

	for _, tt := range tests {
		score, reasoning := policy.Interpret(tt.similarity)
		assert.InDelta(t, tt.score, score, 1e-9, "similarity %v", tt.similarity)
		assert.Equal(t, tt.reasoning, reasoning, "similarity %v", tt.similarity)
	}
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, Cosine([]float32{1, 0}, []float32{0, 1}))
	assert.Zero(t, Cosine(nil, nil))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 1}))

	assert.Zero(t, Similarity([]float32{1, 0}, []float32{-1, 0}))
	assert.InDelta(t, 1.0, Similarity([]float32{3, 4}, []float32{3, 4}), 1e-9)
}
