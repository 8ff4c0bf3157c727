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
	"sort"

	log "github.com/sirupsen/logrus"
)

// merger joins the columns of several label tables: the output has the
// union of the inputs' sources and the union of their cells.
type merger struct {
	stdin      io.Reader
	inputs     []string
	outputFile string
}

func (cmd *merger) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.outputFile, "o", "-", "output `file`")
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}
	cmd.stdin = stdin
	cmd.inputs = flags.Args()

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	merged, err := cmd.doMerge()
	if err != nil {
		return 1
	}
	log.Infof("merged %d tables: %d cells x %d sources", len(cmd.inputs), len(merged.Assignments), len(merged.Sources))
	err = SaveTable(cmd.outputFile, stdout, merged)
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *merger) doMerge() (*TableEntry, error) {
	tables := make([]*TableEntry, len(cmd.inputs))
	var wg WaitGroup
	for i, input := range cmd.inputs {
		i, input := i, input
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("%s: reading", input)
			ent, err := LoadTable(input, cmd.stdin)
			if err != nil {
				wg.Error(err)
				return
			}
			tables[i] = ent
			log.Printf("%s: done", input)
		}()
	}
	err := wg.Wait()
	if err != nil {
		return nil, err
	}

	// Two inputs contributing the same source name would silently
	// double that method's vote, so it is an error.
	var sources []string
	for i, ent := range tables {
		for _, s := range ent.Sources {
			for _, dup := range sources {
				if dup == s {
					return nil, fmt.Errorf("%s: cannot merge tables with duplicate source %q", cmd.inputs[i], s)
				}
			}
			sources = append(sources, s)
		}
	}

	seen := map[string]bool{}
	var names []string
	for _, ent := range tables {
		for _, a := range ent.Assignments {
			if !seen[a.Name] {
				seen[a.Name] = true
				names = append(names, a.Name)
			}
		}
	}
	sort.Strings(names)

	merged := &TableEntry{Sources: sources}
	rowOf := make(map[string]int, len(names))
	for _, name := range names {
		labels := make([]string, 0, len(sources))
		rowOf[name] = len(merged.Assignments)
		merged.Assignments = append(merged.Assignments, Assignment{Name: name, Labels: labels})
	}
	for _, ent := range tables {
		filled := make([]bool, len(names))
		for _, a := range ent.Assignments {
			row := rowOf[a.Name]
			if filled[row] {
				return nil, fmt.Errorf("duplicate cell %q within one table", a.Name)
			}
			merged.Assignments[row].Labels = append(merged.Assignments[row].Labels, a.Labels...)
			filled[row] = true
		}
		// Cells absent from this table get sentinels for its
		// columns.
		for row, ok := range filled {
			if !ok {
				for range ent.Sources {
					merged.Assignments[row].Labels = append(merged.Assignments[row].Labels, Ambiguous)
				}
			}
		}
	}
	return merged, nil
}
