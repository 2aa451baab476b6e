package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// LightGBM evaluates a binary gradient-boosted ensemble exported with
// Booster.dump_model() (JSON).
type LightGBM struct {
	featureNames []string
	nFeatures    int
	sigmoidCoef  float64
	trees        []tree
}

type missingType uint8

const (
	missingNone missingType = iota
	missingZero
	missingNaN
)

// kZeroThreshold in LightGBM
const zeroThreshold = 1e-35

type treeNode struct {
	leaf  bool
	value float64

	feature     int
	threshold   float64
	categories  map[int]struct{} // non-nil for categorical splits
	defaultLeft bool
	missing     missingType
	left, right int
}

// tree is flattened depth-first; index 0 is the root.
type tree []treeNode

// ---- dump_model JSON ----

type lgbmDump struct {
	NumClass      int            `json:"num_class"`
	MaxFeatureIdx *int           `json:"max_feature_idx"`
	Objective     string         `json:"objective"`
	FeatureNames  []string       `json:"feature_names"`
	TreeInfo      []lgbmTreeInfo `json:"tree_info"`
}

type lgbmTreeInfo struct {
	TreeIndex     int       `json:"tree_index"`
	TreeStructure *lgbmNode `json:"tree_structure"`
}

type lgbmNode struct {
	SplitFeature *int            `json:"split_feature"`
	Threshold    json.RawMessage `json:"threshold"`
	DecisionType string          `json:"decision_type"`
	DefaultLeft  bool            `json:"default_left"`
	MissingType  string          `json:"missing_type"`
	LeftChild    *lgbmNode       `json:"left_child"`
	RightChild   *lgbmNode       `json:"right_child"`
	LeafValue    *float64        `json:"leaf_value"`
}

// DecodeLightGBM parses a dump_model() document.
func DecodeLightGBM(r io.Reader) (*LightGBM, error) {
	var dump lgbmDump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return nil, fmt.Errorf("decode lightgbm dump: %w", err)
	}

	if dump.NumClass > 1 {
		return nil, fmt.Errorf("lightgbm: num_class=%d, only binary models are supported", dump.NumClass)
	}
	coef, err := parseObjective(dump.Objective)
	if err != nil {
		return nil, err
	}
	if len(dump.TreeInfo) == 0 {
		return nil, errors.New("lightgbm: no trees in dump")
	}

	nFeatures := len(dump.FeatureNames)
	if dump.MaxFeatureIdx != nil {
		if nFeatures != 0 && nFeatures != *dump.MaxFeatureIdx+1 {
			return nil, fmt.Errorf("lightgbm: %d feature names but max_feature_idx=%d", nFeatures, *dump.MaxFeatureIdx)
		}
		nFeatures = *dump.MaxFeatureIdx + 1
	}
	if nFeatures <= 0 {
		return nil, errors.New("lightgbm: cannot determine feature count")
	}

	m := &LightGBM{
		featureNames: dump.FeatureNames,
		nFeatures:    nFeatures,
		sigmoidCoef:  coef,
		trees:        make([]tree, 0, len(dump.TreeInfo)),
	}
	for i, ti := range dump.TreeInfo {
		if ti.TreeStructure == nil {
			return nil, fmt.Errorf("lightgbm: tree %d has no structure", i)
		}
		var t tree
		if _, err := t.compile(ti.TreeStructure, nFeatures); err != nil {
			return nil, fmt.Errorf("lightgbm: tree %d: %w", i, err)
		}
		m.trees = append(m.trees, t)
	}
	return m, nil
}

// parseObjective accepts "binary sigmoid:<coef>" and "cross_entropy".
func parseObjective(objective string) (float64, error) {
	fields := strings.Fields(objective)
	if len(fields) == 0 {
		return 0, errors.New("lightgbm: missing objective")
	}
	switch fields[0] {
	case "binary":
		coef := 1.0
		for _, f := range fields[1:] {
			if v, ok := strings.CutPrefix(f, "sigmoid:"); ok {
				c, err := strconv.ParseFloat(v, 64)
				if err != nil || c <= 0 {
					return 0, fmt.Errorf("lightgbm: bad sigmoid parameter %q", v)
				}
				coef = c
			}
		}
		return coef, nil
	case "cross_entropy", "xentropy":
		return 1, nil
	default:
		return 0, fmt.Errorf("lightgbm: unsupported objective %q", fields[0])
	}
}

func (t *tree) compile(n *lgbmNode, nFeatures int) (int, error) {
	idx := len(*t)
	if n.SplitFeature == nil {
		if n.LeafValue == nil {
			return 0, errors.New("node is neither split nor leaf")
		}
		*t = append(*t, treeNode{leaf: true, value: *n.LeafValue})
		return idx, nil
	}

	if *n.SplitFeature < 0 || *n.SplitFeature >= nFeatures {
		return 0, fmt.Errorf("split_feature %d out of range", *n.SplitFeature)
	}
	if n.LeftChild == nil || n.RightChild == nil {
		return 0, errors.New("split node without both children")
	}

	node := treeNode{
		feature:     *n.SplitFeature,
		defaultLeft: n.DefaultLeft,
	}
	switch n.MissingType {
	case "", "None":
		node.missing = missingNone
	case "Zero":
		node.missing = missingZero
	case "NaN":
		node.missing = missingNaN
	default:
		return 0, fmt.Errorf("unknown missing_type %q", n.MissingType)
	}

	switch n.DecisionType {
	case "<=", "":
		var th float64
		if err := json.Unmarshal(n.Threshold, &th); err != nil {
			return 0, fmt.Errorf("numerical threshold: %w", err)
		}
		node.threshold = th
	case "==":
		cats, err := parseCategories(n.Threshold)
		if err != nil {
			return 0, err
		}
		node.categories = cats
	default:
		return 0, fmt.Errorf("unknown decision_type %q", n.DecisionType)
	}

	*t = append(*t, node)
	left, err := t.compile(n.LeftChild, nFeatures)
	if err != nil {
		return 0, err
	}
	right, err := t.compile(n.RightChild, nFeatures)
	if err != nil {
		return 0, err
	}
	(*t)[idx].left = left
	(*t)[idx].right = right
	return idx, nil
}

// parseCategories reads "1||4||7" (string) or a single number.
func parseCategories(raw json.RawMessage) (map[int]struct{}, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("categorical threshold: %w", err)
		}
		s = strconv.FormatInt(int64(f), 10)
	}
	cats := make(map[int]struct{})
	for _, part := range strings.Split(s, "||") {
		c, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("categorical threshold %q: %w", s, err)
		}
		cats[c] = struct{}{}
	}
	return cats, nil
}

func (t tree) eval(row []float64) float64 {
	idx := 0
	for {
		n := &t[idx]
		if n.leaf {
			return n.value
		}
		if n.goLeft(row[n.feature]) {
			idx = n.left
		} else {
			idx = n.right
		}
	}
}

func (n *treeNode) goLeft(v float64) bool {
	if n.categories != nil {
		if math.IsNaN(v) || v < 0 {
			return false
		}
		_, ok := n.categories[int(v)]
		return ok
	}

	if math.IsNaN(v) && n.missing != missingNaN {
		v = 0
	}
	if (n.missing == missingZero && math.Abs(v) <= zeroThreshold) ||
		(n.missing == missingNaN && math.IsNaN(v)) {
		return n.defaultLeft
	}
	return v <= n.threshold
}

func (m *LightGBM) FeatureNames() []string { return m.featureNames }

// NumTrees reports the ensemble size.
func (m *LightGBM) NumTrees() int { return len(m.trees) }

// RawScore sums leaf outputs for one row.
func (m *LightGBM) RawScore(row []float64) float64 {
	var sum float64
	for _, t := range m.trees {
		sum += t.eval(row)
	}
	return sum
}

func (m *LightGBM) PredictProba(rows [][]float64) ([][2]float64, error) {
	if err := checkWidth(rows, m.nFeatures); err != nil {
		return nil, err
	}
	out := make([][2]float64, len(rows))
	for i, row := range rows {
		p := sigmoid(m.sigmoidCoef * m.RawScore(row))
		out[i] = [2]float64{1 - p, p}
	}
	return out, nil
}

func (m *LightGBM) Predict(rows [][]float64) ([]int, error) {
	proba, err := m.PredictProba(rows)
	if err != nil {
		return nil, err
	}
	return labelsFromProba(proba, 0.5), nil
}
