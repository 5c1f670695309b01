package coordinator

import (
	"fmt"
	"sort"

	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// MergePolicy decides which search results are applied to the live strategy and in
// which order
type MergePolicy string

const (
	// MergeSequential applies every found candidate, PSO first and GA last, so GA wins
	MergeSequential MergePolicy = "sequential"
	// MergeBestScore applies only the highest scoring candidate; GA wins ties
	MergeBestScore MergePolicy = "best_score"
	// MergePSOOnly applies only the PSO candidate
	MergePSOOnly MergePolicy = "pso_only"
	// MergeGAOnly applies only the GA candidate
	MergeGAOnly MergePolicy = "ga_only"
)

// DefaultMergePolicy keeps the sequential last-write-wins behavior
const DefaultMergePolicy = MergeSequential

// ParseMergePolicy validates a configured policy name; empty selects the default
func ParseMergePolicy(name string) (MergePolicy, error) {
	switch p := MergePolicy(name); p {
	case "":
		return DefaultMergePolicy, nil
	case MergeSequential, MergeBestScore, MergePSOOnly, MergeGAOnly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown merge policy %q", name)
	}
}

// applyOrder ranks algorithms; later entries are applied last and win
var applyOrder = map[optimizer.Algorithm]int{
	optimizer.AlgorithmPSO:    0,
	optimizer.AlgorithmMayfly: 1,
	optimizer.AlgorithmGA:     2,
}

// Plan returns the results to apply, in application order. Results without a
// candidate are never applied.
func (p MergePolicy) Plan(results []*optimizer.RunResult) []*optimizer.RunResult {
	found := make([]*optimizer.RunResult, 0, len(results))
	for _, r := range results {
		if r.Found() {
			found = append(found, r)
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return applyOrder[found[i].Algorithm] < applyOrder[found[j].Algorithm]
	})

	switch p {
	case MergeBestScore:
		var best *optimizer.RunResult
		for _, r := range found {
			if best == nil || r.BestScore >= best.BestScore {
				best = r
			}
		}
		if best == nil {
			return nil
		}
		return []*optimizer.RunResult{best}
	case MergePSOOnly:
		return only(found, optimizer.AlgorithmPSO)
	case MergeGAOnly:
		return only(found, optimizer.AlgorithmGA)
	default:
		return found
	}
}

func only(results []*optimizer.RunResult, alg optimizer.Algorithm) []*optimizer.RunResult {
	for _, r := range results {
		if r.Algorithm == alg {
			return []*optimizer.RunResult{r}
		}
	}
	return nil
}
