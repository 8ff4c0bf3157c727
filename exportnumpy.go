// Copyright (C) The Cellvote Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellvote

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"sort"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

// exportNumpy encodes the label table as a cells x sources matrix of
// integer label codes (0 = ambiguous) in npy format, for downstream
// analysis in numpy/scanpy.
type exportNumpy struct {
	inputFile  string
	outputFile string
	labelsFile string
	cellsFile  string
	onehot     bool
}

func (cmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	flags.StringVar(&cmd.labelsFile, "output-labels", "", "also write code,label csv `file`")
	flags.StringVar(&cmd.cellsFile, "output-cells", "", "also write row,cell csv `file`")
	flags.BoolVar(&cmd.onehot, "one-hot", false, "recode labels as one-hot")
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
	sort.Slice(ent.Assignments, func(i, j int) bool { return ent.Assignments[i].Name < ent.Assignments[j].Name })

	out, vocab, rows, cols, err := table2array(ent)
	if err != nil {
		return 1
	}
	if cmd.onehot {
		out, cols = recodeOnehot(out, cols)
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
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return 1
	}
	npw.Shape = []int{rows, cols}
	err = npw.WriteUint16(out)
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

	if cmd.labelsFile != "" {
		err = writeCSV(cmd.labelsFile, len(vocab), func(i int) string {
			return fmt.Sprintf("%d,%q", i, vocab[i])
		})
		if err != nil {
			return 1
		}
	}
	if cmd.cellsFile != "" {
		err = writeCSV(cmd.cellsFile, rows, func(i int) string {
			return fmt.Sprintf("%d,%q", i, ent.Assignments[i].Name)
		})
		if err != nil {
			return 1
		}
	}
	return 0
}

// table2array codes every distinct confident label as a nonzero
// uint16, with 0 reserved for the sentinel, and returns the table as a
// row-major matrix plus the code -> label vocabulary.
func table2array(ent *TableEntry) (data []uint16, vocab []string, rows, cols int, err error) {
	rows, cols = len(ent.Assignments), len(ent.Sources)
	labelset := map[string]bool{}
	for _, a := range ent.Assignments {
		for _, label := range a.Labels {
			if label != Ambiguous {
				labelset[label] = true
			}
		}
	}
	vocab = make([]string, 1, len(labelset)+1)
	vocab[0] = Ambiguous
	for label := range labelset {
		vocab = append(vocab, label)
	}
	sort.Strings(vocab[1:])
	if len(vocab) > 1<<16 {
		return nil, nil, 0, 0, fmt.Errorf("cannot export %d distinct labels as uint16", len(vocab))
	}
	code := make(map[string]uint16, len(vocab))
	for i, label := range vocab {
		code[label] = uint16(i)
	}
	data = make([]uint16, rows*cols)
	for row, a := range ent.Assignments {
		for col, label := range a.Labels {
			data[row*cols+col] = code[label]
		}
	}
	return
}

func recodeOnehot(in []uint16, incols int) ([]uint16, int) {
	rows := len(in) / incols
	maxvalue := make([]uint16, incols)
	for row := 0; row < rows; row++ {
		for col := 0; col < incols; col++ {
			if v := in[row*incols+col]; maxvalue[col] < v {
				maxvalue[col] = v
			}
		}
	}
	outcol := make([]int, incols)
	outcols := 0
	for incol, v := range maxvalue {
		outcol[incol] = outcols
		outcols += int(v)
	}
	out := make([]uint16, rows*outcols)
	for row := 0; row < rows; row++ {
		for col := 0; col < incols; col++ {
			if v := in[row*incols+col]; v > 0 {
				out[row*outcols+outcol[col]+int(v)-1] = 1
			}
		}
	}
	return out, outcols
}

func writeCSV(filename string, n int, line func(int) string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	for i := 0; i < n; i++ {
		_, err = fmt.Fprintln(bufw, line(i))
		if err != nil {
			return err
		}
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	return f.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
