// Copyright (C) The Cellvote Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellvote

// Ambiguous is the reserved label meaning "no confident vote". It is
// never counted when tallying votes, and it is the result whenever the
// remaining votes do not pick a unique winner.
const Ambiguous = "ambiguous"

// Resolve reduces one cell's labels -- one per source, in any order --
// to a single consensus label by majority vote. Sentinel (Ambiguous)
// labels are not votes. If no votes remain after dropping sentinels, or
// two or more labels tie for the highest count, the result is
// Ambiguous.
//
// Resolve is a pure function of the multiset of labels: it never fails,
// and the result does not depend on input order.
func Resolve(labels []string) string {
	winner, _, _ := resolveVotes(labels)
	return winner
}

// resolveVotes returns the consensus label, the number of votes it
// received, and the total number of confident (non-sentinel) votes. On
// a tie, or when there are no confident votes at all, the winner is
// Ambiguous and its vote count is zero.
func resolveVotes(labels []string) (winner string, votes, total int) {
	counts := make(map[string]int, len(labels))
	for _, label := range labels {
		if label == Ambiguous {
			continue
		}
		counts[label]++
		total++
	}
	winner = Ambiguous
	tied := false
	for label, n := range counts {
		if n > votes {
			winner, votes, tied = label, n, false
		} else if n == votes {
			tied = true
		}
	}
	if tied {
		return Ambiguous, 0, total
	}
	return winner, votes, total
}
