// Copyright (C) The Cellvote Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellvote

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"sort"

	mstats "github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"
)

type statscmd struct {
	inputFile  string
	outputFile string
}

func (cmd *statscmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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

	bufw := bufio.NewWriter(output)
	err = cmd.doStats(ent, bufw)
	if err != nil {
		return 1
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

func (cmd *statscmd) doStats(ent *TableEntry, output io.Writer) error {
	var ret struct {
		Cells           int
		Sources         []string
		Fingerprint     string
		Labels          []string
		LabelVotes      map[string]int
		SourceCoverage  []float64
		CellsWithNVotes []int // a[x]==y means y cells had x confident votes
		Unanimous       int
		Majority        int
		Ties            int
		Unlabeled       int
		PairAgreement   [][]float64
		PairAmbiguityP  [][]float64
		MeanTopShare    float64
		MedianTopShare  float64
	}

	nsrc := len(ent.Sources)
	ret.Cells = len(ent.Assignments)
	ret.Sources = ent.Sources
	ret.Fingerprint = fmt.Sprintf("%x", ent.Fingerprint())
	ret.LabelVotes = map[string]int{}
	ret.SourceCoverage = make([]float64, nsrc)
	ret.CellsWithNVotes = make([]int, nsrc+1)

	confident := make([]int, nsrc) // per source
	ambiguousMask := make([][]bool, nsrc)
	for i := range ambiguousMask {
		ambiguousMask[i] = make([]bool, ret.Cells)
	}
	var topShares []float64
	for row, a := range ent.Assignments {
		winner, votes, total := resolveVotes(a.Labels)
		ret.CellsWithNVotes[total]++
		switch {
		case total == 0:
			ret.Unlabeled++
		case winner == Ambiguous:
			ret.Ties++
		case votes == total:
			ret.Unanimous++
		default:
			ret.Majority++
		}
		if winner != Ambiguous {
			topShares = append(topShares, float64(votes)/float64(total))
		}
		for col, label := range a.Labels {
			if label == Ambiguous {
				ambiguousMask[col][row] = true
				continue
			}
			confident[col]++
			ret.LabelVotes[label]++
		}
	}
	for label := range ret.LabelVotes {
		ret.Labels = append(ret.Labels, label)
	}
	sort.Strings(ret.Labels)
	if ret.Cells > 0 {
		for col := range ent.Sources {
			ret.SourceCoverage[col] = float64(confident[col]) / float64(ret.Cells)
		}
	}
	if len(topShares) > 0 {
		// Errors only occur on empty input, checked above.
		ret.MeanTopShare, _ = mstats.Mean(topShares)
		ret.MedianTopShare, _ = mstats.Median(topShares)
	}

	ret.PairAgreement = make([][]float64, nsrc)
	ret.PairAmbiguityP = make([][]float64, nsrc)
	for i := range ret.PairAgreement {
		ret.PairAgreement[i] = make([]float64, nsrc)
		ret.PairAgreement[i][i] = 1
		ret.PairAmbiguityP[i] = make([]float64, nsrc)
	}
	for i := 0; i < nsrc; i++ {
		for j := i + 1; j < nsrc; j++ {
			both, equal := 0, 0
			for _, a := range ent.Assignments {
				if a.Labels[i] == Ambiguous || a.Labels[j] == Ambiguous {
					continue
				}
				both++
				if a.Labels[i] == a.Labels[j] {
					equal++
				}
			}
			if both > 0 {
				ret.PairAgreement[i][j] = float64(equal) / float64(both)
				ret.PairAgreement[j][i] = ret.PairAgreement[i][j]
			}
			p := pvalue(ambiguousMask[i], ambiguousMask[j])
			ret.PairAmbiguityP[i][j] = p
			ret.PairAmbiguityP[j][i] = p
		}
	}

	log.Infof("stats done, %d cells x %d sources", ret.Cells, nsrc)
	return json.NewEncoder(output).Encode(ret)
}
