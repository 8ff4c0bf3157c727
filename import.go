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
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
)

// importer reads per-method assignment files (TSV: cell, label) and
// combines them into one label table.
type importer struct {
	outputFile string
	naValues   string
	skipHeader bool
	na         map[string]bool
}

func (cmd *importer) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.outputFile, "o", "-", "output `file`")
	flags.StringVar(&cmd.naValues, "na", "NA,N/A,NaN,unassigned,Unknown", "comma-separated label `values` treated as no-call")
	flags.BoolVar(&cmd.skipHeader, "skip-header", false, "skip the first line of each input file")
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
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

	// Low-confidence and missing calls are normalized to the
	// sentinel here, so every downstream consumer only ever sees
	// one spelling of "no confident vote".
	cmd.na = map[string]bool{"": true, Ambiguous: true}
	for _, v := range strings.Split(cmd.naValues, ",") {
		cmd.na[v] = true
	}

	ent, err := cmd.importFiles(flags.Args())
	if err != nil {
		return 1
	}
	log.Infof("imported %d cells x %d sources, fingerprint %x", len(ent.Assignments), len(ent.Sources), ent.Fingerprint())

	err = SaveTable(cmd.outputFile, stdout, ent)
	if err != nil {
		return 1
	}
	return 0
}

// importFiles parses the given "source=file" (or plain file) args
// concurrently and joins them by cell name. Cells missing from a
// source get the sentinel for that source's column.
func (cmd *importer) importFiles(args []string) (*TableEntry, error) {
	sources := make([]string, len(args))
	files := make([]string, len(args))
	for i, arg := range args {
		if eq := strings.IndexByte(arg, '='); eq >= 0 {
			sources[i], files[i] = arg[:eq], arg[eq+1:]
		} else {
			sources[i], files[i] = sourceNameFromFilename(arg), arg
		}
		for _, dup := range sources[:i] {
			if dup == sources[i] {
				return nil, fmt.Errorf("duplicate source name %q", sources[i])
			}
		}
	}

	perSource := make([]map[string]string, len(files))
	var mtx sync.Mutex
	throttle := throttle{Max: runtime.NumCPU()}
	for i, filename := range files {
		i, filename := i, filename
		throttle.Acquire()
		go func() {
			defer throttle.Release()
			labels, err := cmd.readAssignments(filename)
			if err != nil {
				throttle.Report(fmt.Errorf("%s: %w", filename, err))
				return
			}
			log.Infof("%s: %d cells", filename, len(labels))
			mtx.Lock()
			perSource[i] = labels
			mtx.Unlock()
		}()
	}
	err := throttle.Wait()
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var names []string
	for _, labels := range perSource {
		for name := range labels {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	ent := &TableEntry{Sources: sources}
	for _, name := range names {
		labels := make([]string, len(sources))
		for i, m := range perSource {
			if label, ok := m[name]; ok {
				labels[i] = label
			} else {
				labels[i] = Ambiguous
			}
		}
		ent.Assignments = append(ent.Assignments, Assignment{Name: name, Labels: labels})
	}
	return ent, nil
}

// readAssignments parses one 2-column TSV file (cell name, label),
// decompressing if the name ends in ".gz", and returns cell -> label
// with no-call values rewritten to the sentinel.
func (cmd *importer) readAssignments(filename string) (map[string]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var rdr io.Reader = bufio.NewReaderSize(f, 1<<20)
	if strings.HasSuffix(filename, ".gz") {
		gzr, err := pgzip.NewReader(rdr)
		if err != nil {
			return nil, err
		}
		defer gzr.Close()
		rdr = gzr
	}

	labels := map[string]string{}
	scanner := bufio.NewScanner(rdr)
	scanner.Buffer(make([]byte, 1<<16), 1<<24)
	lineno := 0
	for scanner.Scan() {
		lineno++
		if lineno == 1 && cmd.skipHeader {
			continue
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected 2 tab-separated fields, got %d", lineno, len(fields))
		}
		name, label := fields[0], fields[1]
		if name == "" {
			return nil, fmt.Errorf("line %d: empty cell name", lineno)
		}
		if _, dup := labels[name]; dup {
			return nil, fmt.Errorf("line %d: duplicate cell %q", lineno, name)
		}
		if cmd.na[label] {
			label = Ambiguous
		}
		labels[name] = label
	}
	return labels, scanner.Err()
}

// sourceNameFromFilename turns "dir/singler.tsv.gz" into "singler".
func sourceNameFromFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, ".gz")
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
