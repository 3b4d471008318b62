package pagerank

import "testing"

func sumScores(s Scores) float64 {
	var total float64
	for _, v := range s {
		total += v
	}
	return total
}

func TestComputeConvergesAndSumsToOne(t *testing.T) {
	g := Graph{
		Nodes: []int64{1, 2, 3},
		Out: map[int64][]int64{
			1: {2, 3},
			2: {3},
			3: {1},
		},
	}
	scores := Compute(g)
	total := sumScores(scores)
	if total < 0.99 || total > 1.01 {
		t.Fatalf("expected scores to sum to ~1.0, got %f", total)
	}
	if scores[3] <= scores[2] {
		t.Fatalf("expected node 3 (receives from both 1 and 2) to outrank node 2, got %+v", scores)
	}
}

func TestComputeHandlesDanglingNodes(t *testing.T) {
	g := Graph{
		Nodes: []int64{1, 2},
		Out:   map[int64][]int64{1: {2}},
	}
	scores := Compute(g)
	total := sumScores(scores)
	if total < 0.99 || total > 1.01 {
		t.Fatalf("expected dangling mass to be redistributed, scores sum to %f", total)
	}
}

func TestComputePersonalisedBiasesTowardSeeds(t *testing.T) {
	g := Graph{
		Nodes: []int64{1, 2, 3, 4},
		Out: map[int64][]int64{
			1: {2},
			3: {4},
		},
	}
	biased := ComputePersonalised(g, []int64{3})
	uniform := Compute(g)
	if biased[4] <= uniform[4] {
		t.Fatalf("expected personalised jump toward seed 3 to boost downstream node 4, biased=%f uniform=%f", biased[4], uniform[4])
	}
}

func TestComputeEmptyGraph(t *testing.T) {
	if scores := Compute(Graph{}); len(scores) != 0 {
		t.Fatalf("expected empty scores for empty graph, got %+v", scores)
	}
}
