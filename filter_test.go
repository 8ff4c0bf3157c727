// Copyright (C) The Cellvote Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellvote

import (
	"bytes"
	"os"

	"gopkg.in/check.v1"
)

type filterSuite struct{}

var _ = check.Suite(&filterSuite{})

func (s *filterSuite) table() *TableEntry {
	return &TableEntry{
		Sources: []string{"scmap", "singler", "scina"},
		Assignments: []Assignment{
			{Name: "cell1", Labels: []string{"T cell", "T cell", "T cell"}},
			{Name: "cell2", Labels: []string{Ambiguous, "B cell", Ambiguous}},
			{Name: "cell3", Labels: []string{Ambiguous, Ambiguous, Ambiguous}},
			{Name: "cell4", Labels: []string{"NK cell", "NK cell", Ambiguous}},
		},
	}
}

func (s *filterSuite) TestMinVotes(c *check.C) {
	ent := s.table()
	err := (&filter{MinVotes: 2, MaxCells: -1}).Apply(ent)
	c.Assert(err, check.IsNil)
	c.Check(ent.Assignments, check.HasLen, 2)
	c.Check(ent.Assignments[0].Name, check.Equals, "cell1")
	c.Check(ent.Assignments[1].Name, check.Equals, "cell4")
}

func (s *filterSuite) TestDropSource(c *check.C) {
	ent := s.table()
	err := (&filter{DropSource: "singler", MaxCells: -1}).Apply(ent)
	c.Assert(err, check.IsNil)
	c.Check(ent.Sources, check.DeepEquals, []string{"scmap", "scina"})
	c.Check(ent.Assignments[1].Labels, check.DeepEquals, []string{Ambiguous, Ambiguous})

	err = (&filter{DropSource: "seurat", MaxCells: -1}).Apply(ent)
	c.Check(err, check.ErrorMatches, `cannot drop source "seurat": no such source`)
}

func (s *filterSuite) TestMaxCells(c *check.C) {
	ent := s.table()
	err := (&filter{MaxCells: 2}).Apply(ent)
	c.Assert(err, check.IsNil)
	c.Check(ent.Assignments, check.HasLen, 2)

	ent = s.table()
	err = (&filter{MaxCells: -1}).Apply(ent)
	c.Assert(err, check.IsNil)
	c.Check(ent.Assignments, check.HasLen, 4)
}

func (s *filterSuite) TestFilterCommand(c *check.C) {
	tmpdir := c.MkDir()
	c.Assert(SaveTable(tmpdir+"/table.gob", nil, s.table()), check.IsNil)

	exited := (&filtercmd{}).RunCommand("filter", []string{
		"-i", tmpdir + "/table.gob",
		"-o", tmpdir + "/filtered.gob",
		"-min-votes", "1",
		"-drop-source", "scina",
	}, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	got, err := LoadTable(tmpdir+"/filtered.gob", nil)
	c.Assert(err, check.IsNil)
	c.Check(got.Sources, check.DeepEquals, []string{"scmap", "singler"})
	c.Check(got.Assignments, check.HasLen, 3)
	for _, a := range got.Assignments {
		c.Check(a.Name, check.Not(check.Equals), "cell3")
	}
}
