// Package demo holds the CPU-bound workloads the command line tool
// profiles.
package demo

import (
	"github.com/AlexKent3141/lurien/profiling"
)

// Nested spends roughly half of target iterations in inner2 (a tenth of
// them in inner3 below it) and two full target loops in func2.
func Nested(th *profiling.Thread, target int) int {
	defer th.Enter("outer").Exit()

	count := 0
	func() {
		defer th.Enter("inner2").Exit()
		for i := 0; i < target/2; i++ {
			count++
		}

		defer th.Enter("inner3").Exit()
		for i := 0; i < target/10; i++ {
			count++
		}
	}()

	for i := 0; i < 2; i++ {
		count += countTo(th, target)
	}
	return count
}

func countTo(th *profiling.Thread, target int) int {
	defer th.Enter("func2").Exit()

	count := 0
	for i := 0; i < target; i++ {
		count++
	}
	return count
}

// Recursive sums squares through a self-named recursive scope. Because a
// scope re-entered under its own name toggles back to its parent's path,
// the samples alternate between "func" and "func/recursive" instead of
// building a deep tree.
func Recursive(th *profiling.Thread, rounds, depth int) int {
	defer th.Enter("func").Exit()

	total := 0
	for i := 0; i < rounds; i++ {
		total += recurse(th, depth)
	}
	return total
}

func recurse(th *profiling.Thread, depth int) int {
	defer th.Enter("recursive").Exit()
	if depth == 0 {
		return 0
	}
	return recurse(th, depth-1) + depth*depth
}
