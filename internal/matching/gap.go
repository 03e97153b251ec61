package matching

import (
	"context"
	"math"
	"strings"

	"github.com/spigell/skill-gap/internal/nlp"
)

// SkillEvidence records how a single target skill was decided.
type SkillEvidence struct {
	OriginalSkill   string   `json:"original_skill"`
	NormalizedForms []string `json:"normalized_forms"`
	LexicalHit      bool     `json:"lexical_hit"`
	// MaxSemanticSimilarity stays 0 for lexical hits since no embedding is spent on them.
	MaxSemanticSimilarity float64 `json:"max_semantic_similarity"`
	Present               bool    `json:"present"`
}

// gapPlan holds the per-request state of a gap decision between the lexical
// pass and the semantic pass.
type gapPlan struct {
	evidence []SkillEvidence
	// slots[i] are the batch positions of the variants of skill i; nil for lexical hits.
	slots [][]int
}

func newGapPlan(skills []string, normalizedResume string, chunks []nlp.ResumeChunk) *gapPlan {
	chunkText := joinChunks(chunks)

	plan := &gapPlan{
		evidence: make([]SkillEvidence, len(skills)),
		slots:    make([][]int, len(skills)),
	}

	for i, skill := range skills {
		forms := nlp.Expand(skill)
		ev := SkillEvidence{OriginalSkill: skill, NormalizedForms: forms}
		for _, form := range forms {
			if nlp.ContainsPhrase(normalizedResume, form) || nlp.ContainsPhrase(chunkText, form) {
				ev.LexicalHit = true
				ev.Present = true
				break
			}
		}
		plan.evidence[i] = ev
	}

	return plan
}

// pending reports whether any skill still needs the semantic pass.
func (p *gapPlan) pending() bool {
	for _, ev := range p.evidence {
		if !ev.LexicalHit && len(ev.NormalizedForms) > 0 {
			return true
		}
	}
	return false
}

// enqueue adds the variants of every lexically missed skill to the batch.
func (p *gapPlan) enqueue(batch *embedBatch) {
	for i, ev := range p.evidence {
		if ev.LexicalHit {
			continue
		}
		for _, form := range ev.NormalizedForms {
			p.slots[i] = append(p.slots[i], batch.add(form))
		}
	}
}

// decide runs the semantic pass. A skill is present when any variant reaches
// the threshold against the whole résumé or against its best chunk.
func (p *gapPlan) decide(vectors [][]float32, resumeSlot int, chunkSlots []int, threshold float64) []SkillEvidence {
	for i := range p.evidence {
		ev := &p.evidence[i]
		if ev.LexicalHit {
			continue
		}

		best := 0.0
		for _, slot := range p.slots[i] {
			variant := vectors[slot]
			best = math.Max(best, Similarity(variant, vectors[resumeSlot]))
			for _, cs := range chunkSlots {
				best = math.Max(best, Similarity(variant, vectors[cs]))
			}
		}

		ev.MaxSemanticSimilarity = best
		ev.Present = best >= threshold
	}

	return p.evidence
}

// Decide evaluates every target skill against a résumé: a lexical pass over
// the normalized résumé and its chunks first, then one embedding batch for
// the skills the lexical pass missed. Evidence is returned in input order.
func Decide(ctx context.Context, embedder Embedder, skills []string, resumeText string, chunks []nlp.ResumeChunk, threshold float64) ([]SkillEvidence, error) {
	d, err := decide(ctx, embedder, skills, nlp.Normalize(resumeText), chunks, threshold)
	if err != nil {
		return nil, err
	}
	return d.evidence, nil
}

type decision struct {
	evidence []SkillEvidence
	// resume and extra are only set when the batch was sent.
	resume []float32
	extra  [][]float32
}

// decide runs both passes. Extra texts ride in the same embedding batch and
// their vectors come back in order; without them, a request whose skills
// are all lexical hits never reaches the embedder.
func decide(ctx context.Context, embedder Embedder, skills []string, normalizedResume string, chunks []nlp.ResumeChunk, threshold float64, extra ...string) (*decision, error) {
	plan := newGapPlan(skills, normalizedResume, chunks)
	if !plan.pending() && len(extra) == 0 {
		return &decision{evidence: plan.evidence}, nil
	}

	batch := &embedBatch{}
	resumeSlot := batch.add(normalizedResume)
	extraSlots := make([]int, 0, len(extra))
	for _, text := range extra {
		extraSlots = append(extraSlots, batch.add(text))
	}
	chunkSlots := make([]int, 0, len(chunks))
	for _, c := range chunks {
		chunkSlots = append(chunkSlots, batch.add(c.Text))
	}
	plan.enqueue(batch)

	vectors, err := batch.resolve(ctx, embedder)
	if err != nil {
		return nil, err
	}

	d := &decision{
		evidence: plan.decide(vectors, resumeSlot, chunkSlots, threshold),
		resume:   vectors[resumeSlot],
	}
	for _, slot := range extraSlots {
		d.extra = append(d.extra, vectors[slot])
	}
	return d, nil
}

// MissingSkills maps the evidence back to the caller's labels, keeping the
// original order and casing.
func MissingSkills(evidence []SkillEvidence) []string {
	missing := []string{}
	for _, ev := range evidence {
		if !ev.Present {
			missing = append(missing, ev.OriginalSkill)
		}
	}
	return missing
}

func joinChunks(chunks []nlp.ResumeChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, " ")
}
