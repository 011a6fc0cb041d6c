package operator

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kestrel-data/datamap/internal/document"
)

// LabelScore is one classifier prediction.
type LabelScore struct {
	Label string
	Prob  float64
}

// TextClassifier predicts labels for a piece of text. It is constructed once
// per operator instance from a model file and reused across every document,
// mirroring how a fastText model is loaded once and queried per-line.
type TextClassifier interface {
	Predict(text string) []LabelScore
}

// ngramModel is a lightweight bag-of-words logistic classifier read from a
// fastText supervised-mode ".vec"-style text dump: one line per label
// weight vector, "__label__<name> <w0> <w1> ... <wd>", followed by one
// shared "__bias__ <b0> <b1> ...". Word features are hashed into the same
// dimensionality via a simple string hash, which keeps the model format
// self-contained (no external fastText runtime dependency) while honoring
// the same file-backed, construct-once-predict-many contract.
type ngramModel struct {
	mu      sync.Mutex
	dim     int
	labels  []string
	weights [][]float64
	bias    []float64
}

func loadNgramModel(path string) (*ngramModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := &ngramModel{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := fields[0]
		weights := make([]float64, 0, len(fields)-1)
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("fasttext model %s: %w", path, err)
			}
			weights = append(weights, v)
		}
		if name == "__bias__" {
			m.bias = weights
			continue
		}
		label := strings.TrimPrefix(name, "__label__")
		m.labels = append(m.labels, label)
		m.weights = append(m.weights, weights)
		if m.dim == 0 {
			m.dim = len(weights)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if m.dim == 0 {
		return nil, fmt.Errorf("fasttext model %s: no label vectors found", path)
	}
	if len(m.bias) != len(m.labels) {
		m.bias = make([]float64, len(m.labels))
	}
	return m, nil
}

func hashFeature(token string, dim int) int {
	var h uint32 = 2166136261
	for i := 0; i < len(token); i++ {
		h ^= uint32(token[i])
		h *= 16777619
	}
	return int(h % uint32(dim))
}

func (m *ngramModel) Predict(text string) []LabelScore {
	m.mu.Lock()
	defer m.mu.Unlock()

	feats := make([]float64, m.dim)
	for _, tok := range wordTokens(strings.ToLower(text)) {
		feats[hashFeature(tok, m.dim)]++
	}

	scores := make([]LabelScore, len(m.labels))
	for i, label := range m.labels {
		z := m.bias[i]
		w := m.weights[i]
		for j := 0; j < m.dim && j < len(w); j++ {
			z += w[j] * feats[j]
		}
		scores[i] = LabelScore{Label: label, Prob: sigmoid(z)}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Prob > scores[j].Prob })
	return scores
}

func sigmoid(z float64) float64 { return 1.0 / (1.0 + math.Exp(-z)) }

// newFastTextAnno implements fasttext_anno: run the model loaded from
// fast_text_file, write the top-k predictions at or above threshold to
// output_field as a label->probability map.
func newFastTextAnno(c Config, field string) (Operator, error) {
	model, err := loadNgramModel(c.FastTextFile)
	if err != nil {
		return nil, fmt.Errorf("fasttext_anno: %w", err)
	}
	k := c.K
	if k <= 0 {
		k = 1
	}
	threshold := c.Threshold
	outputField := c.OutputField
	if outputField == "" {
		outputField = "fasttext_labels"
	}
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		preds := model.Predict(s)
		out := make(map[string]any, k)
		for i := 0; i < k && i < len(preds); i++ {
			if preds[i].Prob < threshold {
				continue
			}
			out[preds[i].Label] = preds[i].Prob
		}
		d2 := document.Clone(d)
		if err := document.Set(d2, outputField, out); err != nil {
			return Fail(err)
		}
		return Keep(d2)
	}), nil
}
