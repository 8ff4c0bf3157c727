// Copyright (C) The Cellvote Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellvote

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"

	log "github.com/sirupsen/logrus"
)

type filter struct {
	MinVotes   int
	DropSource string
	MaxCells   int
}

func (f *filter) Flags(flags *flag.FlagSet) {
	flags.IntVar(&f.MinVotes, "min-votes", 0, "drop cells with fewer than `N` confident labels")
	flags.StringVar(&f.DropSource, "drop-source", "", "drop the label column named `source`")
	flags.IntVar(&f.MaxCells, "max-cells", -1, "keep only the first `N` cells")
}

// Apply edits ent in place.
func (f *filter) Apply(ent *TableEntry) error {
	if f.DropSource != "" {
		col := ent.SourceIndex(f.DropSource)
		if col < 0 {
			return fmt.Errorf("cannot drop source %q: no such source", f.DropSource)
		}
		ent.Sources = append(ent.Sources[:col], ent.Sources[col+1:]...)
		for i, a := range ent.Assignments {
			ent.Assignments[i].Labels = append(a.Labels[:col], a.Labels[col+1:]...)
		}
	}

	if f.MaxCells >= 0 && len(ent.Assignments) > f.MaxCells {
		ent.Assignments = ent.Assignments[:f.MaxCells]
	}

	if f.MinVotes > 0 {
		kept := ent.Assignments[:0]
		for _, a := range ent.Assignments {
			confident := 0
			for _, label := range a.Labels {
				if label != Ambiguous {
					confident++
				}
			}
			if confident >= f.MinVotes {
				kept = append(kept, a)
			}
		}
		ent.Assignments = kept
	}
	return nil
}

type filtercmd struct {
	inputFile  string
	outputFile string
	filter
}

func (cmd *filtercmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.inputFile, "i", "-", "input `file`")
	flags.StringVar(&cmd.outputFile, "o", "-", "output `file`")
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	cmd.filter.Flags(flags)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	ent, err := LoadTable(cmd.inputFile, stdin)
	if err != nil {
		return 1
	}
	log.Printf("reading done, %d cells", len(ent.Assignments))

	log.Print("filtering")
	err = cmd.filter.Apply(ent)
	if err != nil {
		return 1
	}
	log.Printf("filtering done, %d cells x %d sources", len(ent.Assignments), len(ent.Sources))

	err = SaveTable(cmd.outputFile, stdout, ent)
	if err != nil {
		return 1
	}
	return 0
}
