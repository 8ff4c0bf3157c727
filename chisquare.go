// Copyright (C) The Cellvote Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellvote

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var chisquared = distuv.ChiSquared{K: 1, Src: rand.NewSource(rand.Uint64())}

// pvalue returns the chi-squared (1 dof) p-value for association
// between two boolean series of equal length -- e.g. the
// ambiguous-label masks of two sources across all cells. Degenerate
// tables (a row or column of zeros) yield 1.
func pvalue(x, y []bool) float64 {
	var obs [2][2]float64
	for i, xi := range x {
		a, b := 0, 0
		if xi {
			a = 1
		}
		if y[i] {
			b = 1
		}
		obs[a][b]++
	}
	var (
		rowsum = [2]float64{obs[0][0] + obs[0][1], obs[1][0] + obs[1][1]}
		colsum = [2]float64{obs[0][0] + obs[1][0], obs[0][1] + obs[1][1]}
		sz     = float64(len(x))
		sum    float64
	)
	if rowsum[0] == 0 || rowsum[1] == 0 || colsum[0] == 0 || colsum[1] == 0 {
		return 1
	}
	for i := range obs {
		for j := range obs[i] {
			exp := rowsum[i] * colsum[j] / sz
			d := obs[i][j] - exp
			sum += d * d / exp
		}
	}
	return 1 - chisquared.CDF(sum)
}
