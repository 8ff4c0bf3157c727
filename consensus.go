// Copyright (C) The Cellvote Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellvote

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
)

// consensuscmd reduces each cell's labels to one consensus label by
// majority vote (Resolve).
type consensuscmd struct {
	inputFile  string
	outputFile string
	format     string
	column     string
	filter     filter
	batchArgs
}

func (cmd *consensuscmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	flags.StringVar(&cmd.format, "format", "tsv", "output `format`: tsv (cell, label, votes, total) or gob (input table plus consensus column)")
	flags.StringVar(&cmd.column, "column", "consensus", "source `name` for the added column (-format=gob)")
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	cmd.filter.Flags(flags)
	cmd.batchArgs.Flags(flags)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if cmd.format != "tsv" && cmd.format != "gob" {
		err = fmt.Errorf("invalid -format %q", cmd.format)
		return 2
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)

	ent, err := LoadTable(cmd.inputFile, stdin)
	if err != nil {
		return 1
	}
	log.Infof("reading done, %d cells x %d sources", len(ent.Assignments), len(ent.Sources))

	err = cmd.filter.Apply(ent)
	if err != nil {
		return 1
	}

	winners := make([]string, len(ent.Assignments))
	votes := make([]int, len(ent.Assignments))
	totals := make([]int, len(ent.Assignments))
	err = cmd.RunBatches(context.Background(), func(ctx context.Context, batch int) error {
		lo, hi := cmd.Bounds(batch, len(ent.Assignments))
		for row := lo; row < hi; row++ {
			winners[row], votes[row], totals[row] = resolveVotes(ent.Assignments[row].Labels)
		}
		return ctx.Err()
	})
	if err != nil {
		return 1
	}

	confident := 0
	for _, w := range winners {
		if w != Ambiguous {
			confident++
		}
	}
	log.Infof("consensus done, %d/%d cells labeled", confident, len(winners))

	if cmd.format == "gob" {
		err = ent.AppendSource(cmd.column, winners)
		if err != nil {
			return 1
		}
		err = SaveTable(cmd.outputFile, stdout, ent)
		if err != nil {
			return 1
		}
		return 0
	}

	var output io.WriteCloser
	if cmd.outputFile == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(cmd.outputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	bufw := bufio.NewWriterSize(output, 1<<20)
	var outw io.Writer = bufw
	var gzw *pgzip.Writer
	if strings.HasSuffix(cmd.outputFile, ".gz") {
		gzw = pgzip.NewWriter(bufw)
		outw = gzw
	}
	for row, a := range ent.Assignments {
		_, err = fmt.Fprintf(outw, "%s\t%s\t%d\t%d\n", a.Name, winners[row], votes[row], totals[row])
		if err != nil {
			return 1
		}
	}
	if gzw != nil {
		err = gzw.Close()
		if err != nil {
			return 1
		}
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}
