package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var adjectives = []string{
	"acute", "binary", "bounded", "cubic", "convex",
	"decimal", "dense", "discrete", "even", "finite",
	"golden", "integral", "inverse", "linear", "modular",
	"natural", "negative", "normal", "oblique", "odd",
	"orthogonal", "parallel", "perfect", "polar", "positive",
	"prime", "proper", "radial", "rational", "real",
	"regular", "right", "round", "scalar", "sparse",
	"square", "steady", "tangent", "unit", "whole",
}

var nouns = []string{
	"angle", "arc", "axis", "chord", "circle",
	"cone", "cube", "digit", "divisor", "ellipse",
	"factor", "field", "fraction", "graph", "helix",
	"lattice", "lemma", "limit", "matrix", "median",
	"node", "number", "orbit", "parabola", "point",
	"polygon", "prism", "product", "quotient", "radius",
	"ratio", "ray", "root", "sector", "sequence",
	"series", "sphere", "sum", "tensor", "vector",
}

// GenerateWordID generates a human-friendly ID in the form "adjective-adjective-noun".
func GenerateWordID() string {
	return fmt.Sprintf("%s-%s-%s", pickRandom(adjectives), pickRandom(adjectives), pickRandom(nouns))
}

func pickRandom(list []string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(list))))
	if err != nil {
		return list[0]
	}
	return list[n.Int64()]
}
