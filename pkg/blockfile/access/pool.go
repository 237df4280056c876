// Package access orders batches of block indices for disk-friendly traversal.
//
// Block index is monotonic in file offset, so visiting a batch in ascending
// index order turns scattered requests into a forward sweep over the file.
// A Plan remembers where each visited index came from so results produced in
// physical order can be put back into the caller's request order.
package access

import "slices"

// Plan is an ascending traversal of a batch of block indices.
type Plan struct {
	// Sorted holds the requested indices in ascending order. Duplicates are
	// kept and appear in request order.
	Sorted []uint32

	// Positions[k] is the position in the original request of Sorted[k].
	Positions []int
}

// Order builds the Plan for indices. The input slice is not modified.
func Order(indices []uint32) Plan {
	positions := make([]int, len(indices))
	for i := range positions {
		positions[i] = i
	}

	slices.SortStableFunc(positions, func(a, b int) int {
		switch {
		case indices[a] < indices[b]:
			return -1
		case indices[a] > indices[b]:
			return 1
		default:
			return 0
		}
	})

	sorted := make([]uint32, len(indices))
	for k, pos := range positions {
		sorted[k] = indices[pos]
	}

	return Plan{Sorted: sorted, Positions: positions}
}

// Len returns the number of indices in the plan.
func (p Plan) Len() int {
	return len(p.Sorted)
}

// Scatter places results computed in plan order into request order:
// out[p.Positions[k]] = inPlanOrder[k].
func Scatter[T any](p Plan, inPlanOrder []T) []T {
	out := make([]T, len(inPlanOrder))
	for k, v := range inPlanOrder {
		out[p.Positions[k]] = v
	}
	return out
}

// Gather picks request-ordered values into plan order:
// out[k] = inRequestOrder[p.Positions[k]].
func Gather[T any](p Plan, inRequestOrder []T) []T {
	out := make([]T, len(p.Positions))
	for k, pos := range p.Positions {
		out[k] = inRequestOrder[pos]
	}
	return out
}
