// Copyright (C) The Cellvote Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellvote

import (
	"bytes"
	"io/ioutil"
	"os"

	"github.com/kshedden/gonpy"
	"gopkg.in/check.v1"
)

type exportNumpySuite struct{}

var _ = check.Suite(&exportNumpySuite{})

func (s *exportNumpySuite) TestTableToNumpy(c *check.C) {
	tmpdir := c.MkDir()
	table := importTestdata(c, tmpdir)

	exited := (&exportNumpy{}).RunCommand("export-numpy", []string{
		"-i", table,
		"-o", tmpdir + "/matrix.npy",
		"-output-labels", tmpdir + "/labels.csv",
		"-output-cells", tmpdir + "/cells.csv",
	}, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	f, err := os.Open(tmpdir + "/matrix.npy")
	c.Assert(err, check.IsNil)
	defer f.Close()
	npy, err := gonpy.NewReader(f)
	c.Assert(err, check.IsNil)
	c.Check(npy.Shape, check.DeepEquals, []int{6, 3})
	codes, err := npy.GetUint16()
	c.Assert(err, check.IsNil)
	c.Check(codes, check.DeepEquals, []uint16{
		4, 4, 4,
		1, 1, 0,
		3, 4, 3,
		0, 2, 2,
		2, 2, 0,
		4, 1, 0,
	})

	labels, err := ioutil.ReadFile(tmpdir + "/labels.csv")
	c.Assert(err, check.IsNil)
	c.Check(string(labels), check.Equals, `0,"ambiguous"
1,"B cell"
2,"Monocyte"
3,"NK cell"
4,"T cell"
`)

	cells, err := ioutil.ReadFile(tmpdir + "/cells.csv")
	c.Assert(err, check.IsNil)
	c.Check(string(cells), check.Matches, `(?ms)0,"AAACATACAACCAC-1"\n.*5,"AAACGCTGACCAGT-1"\n`)
}

func (s *exportNumpySuite) TestOnehot(c *check.C) {
	in := []uint16{
		2, 1,
		0, 2,
	}
	out, outcols := recodeOnehot(in, 2)
	c.Check(outcols, check.Equals, 4)
	c.Check(out, check.DeepEquals, []uint16{
		0, 1, 1, 0,
		0, 0, 0, 1,
	})
}
