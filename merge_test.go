// Copyright (C) The Cellvote Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellvote

import (
	"bytes"
	"os"

	"gopkg.in/check.v1"
)

type mergeSuite struct{}

var _ = check.Suite(&mergeSuite{})

func (s *mergeSuite) TestMergeFillsMissingCells(c *check.C) {
	tmpdir := c.MkDir()
	err := SaveTable(tmpdir+"/a.gob", nil, &TableEntry{
		Sources: []string{"scmap"},
		Assignments: []Assignment{
			{Name: "cell1", Labels: []string{"T cell"}},
			{Name: "cell2", Labels: []string{"B cell"}},
		},
	})
	c.Assert(err, check.IsNil)
	err = SaveTable(tmpdir+"/b.gob.gz", nil, &TableEntry{
		Sources: []string{"singler", "scina"},
		Assignments: []Assignment{
			{Name: "cell2", Labels: []string{"B cell", Ambiguous}},
			{Name: "cell3", Labels: []string{"NK cell", "NK cell"}},
		},
	})
	c.Assert(err, check.IsNil)

	exited := (&merger{}).RunCommand("merge", []string{
		"-o", tmpdir + "/merged.gob",
		tmpdir + "/a.gob",
		tmpdir + "/b.gob.gz",
	}, bytes.NewReader(nil), os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	got, err := LoadTable(tmpdir+"/merged.gob", nil)
	c.Assert(err, check.IsNil)
	c.Check(got.Sources, check.DeepEquals, []string{"scmap", "singler", "scina"})
	c.Check(got.Assignments, check.DeepEquals, []Assignment{
		{Name: "cell1", Labels: []string{"T cell", Ambiguous, Ambiguous}},
		{Name: "cell2", Labels: []string{"B cell", "B cell", Ambiguous}},
		{Name: "cell3", Labels: []string{Ambiguous, "NK cell", "NK cell"}},
	})
}

func (s *mergeSuite) TestMergeRejectsDuplicateSource(c *check.C) {
	tmpdir := c.MkDir()
	ent := &TableEntry{
		Sources:     []string{"scmap"},
		Assignments: []Assignment{{Name: "cell1", Labels: []string{"T cell"}}},
	}
	c.Assert(SaveTable(tmpdir+"/a.gob", nil, ent), check.IsNil)
	c.Assert(SaveTable(tmpdir+"/b.gob", nil, ent), check.IsNil)

	var stderr bytes.Buffer
	exited := (&merger{}).RunCommand("merge", []string{
		"-o", tmpdir + "/merged.gob",
		tmpdir + "/a.gob",
		tmpdir + "/b.gob",
	}, bytes.NewReader(nil), os.Stderr, &stderr)
	c.Check(exited, check.Equals, 1)
	c.Check(stderr.String(), check.Matches, `(?ms).*duplicate source "scmap".*`)
}
