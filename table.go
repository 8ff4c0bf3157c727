// Copyright (C) The Cellvote Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellvote

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	"golang.org/x/crypto/blake2b"
)

// Assignment is one cell's labels, aligned with TableEntry.Sources.
type Assignment struct {
	Name   string
	Labels []string
}

// TableEntry is the unit of the gob streams exchanged between
// subcommands: a label table (cells x sources), or a piece of one. A
// stream may contain several entries; entries after the first must
// carry either an empty source list or the same sources in the same
// order.
type TableEntry struct {
	Sources     []string
	Assignments []Assignment
}

// SourceIndex returns the column index of the named source, or -1.
func (ent *TableEntry) SourceIndex(name string) int {
	for i, s := range ent.Sources {
		if s == name {
			return i
		}
	}
	return -1
}

// AppendSource adds a column to the table. labels must have one
// element per assignment, in row order.
func (ent *TableEntry) AppendSource(name string, labels []string) error {
	if ent.SourceIndex(name) >= 0 {
		return fmt.Errorf("source %q already present", name)
	}
	if len(labels) != len(ent.Assignments) {
		return fmt.Errorf("%d labels for %d cells", len(labels), len(ent.Assignments))
	}
	ent.Sources = append(ent.Sources, name)
	for i := range ent.Assignments {
		ent.Assignments[i].Labels = append(ent.Assignments[i].Labels, labels[i])
	}
	return nil
}

// Fingerprint returns a blake2b-256 digest of the table's sources,
// cell names, and labels, in row order.
func (ent *TableEntry) Fingerprint() [blake2b.Size256]byte {
	h, _ := blake2b.New256(nil)
	for _, s := range ent.Sources {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	h.Write([]byte{0})
	for _, a := range ent.Assignments {
		h.Write([]byte(a.Name))
		h.Write([]byte{0})
		for _, label := range a.Labels {
			h.Write([]byte(label))
			h.Write([]byte{0})
		}
	}
	var fp [blake2b.Size256]byte
	h.Sum(fp[:0])
	return fp
}

// DecodeTable reads a gob stream of TableEntry records, calling fn for
// each entry until EOF.
func DecodeTable(rdr io.Reader, gz bool, fn func(*TableEntry) error) error {
	if gz {
		gzr, err := pgzip.NewReader(bufio.NewReaderSize(rdr, 1<<22))
		if err != nil {
			return err
		}
		defer gzr.Close()
		rdr = gzr
	} else {
		rdr = bufio.NewReaderSize(rdr, 1<<22)
	}
	dec := gob.NewDecoder(rdr)
	for {
		var ent TableEntry
		err := dec.Decode(&ent)
		if err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("gob decode: %w", err)
		}
		for _, a := range ent.Assignments {
			if len(a.Labels) != len(ent.Sources) {
				return fmt.Errorf("invalid input: cell %q has %d labels for %d sources", a.Name, len(a.Labels), len(ent.Sources))
			}
		}
		err = fn(&ent)
		if err != nil {
			return err
		}
	}
}

// ReadTable reads a whole table from rdr, concatenating streamed
// entries.
func ReadTable(rdr io.Reader, gz bool) (*TableEntry, error) {
	ret := &TableEntry{}
	err := DecodeTable(rdr, gz, func(ent *TableEntry) error {
		if len(ret.Sources) == 0 {
			ret.Sources = ent.Sources
		} else if len(ent.Sources) > 0 {
			if len(ent.Sources) != len(ret.Sources) {
				return fmt.Errorf("cannot concatenate entries with differing sources")
			}
			for i := range ent.Sources {
				if ent.Sources[i] != ret.Sources[i] {
					return fmt.Errorf("cannot concatenate entries with differing sources")
				}
			}
		}
		ret.Assignments = append(ret.Assignments, ent.Assignments...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// LoadTable reads one table from the named file, with "-" meaning
// stdin and a ".gz" suffix selecting pgzip decompression.
func LoadTable(filename string, stdin io.Reader) (*TableEntry, error) {
	var input io.ReadCloser
	if filename == "-" {
		input = ioutil.NopCloser(stdin)
	} else {
		var err error
		input, err = os.Open(filename)
		if err != nil {
			return nil, err
		}
		defer input.Close()
	}
	ent, err := ReadTable(input, strings.HasSuffix(filename, ".gz"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return ent, input.Close()
}

// WriteTable writes the table to w as a single gob entry, compressing
// with pgzip if gz is true.
func WriteTable(w io.Writer, gz bool, ent *TableEntry) error {
	bufw := bufio.NewWriterSize(w, 1<<20)
	enc := gob.NewEncoder(bufw)
	var gzw *pgzip.Writer
	if gz {
		gzw = pgzip.NewWriter(bufw)
		enc = gob.NewEncoder(gzw)
	}
	err := enc.Encode(*ent)
	if err != nil {
		return err
	}
	if gzw != nil {
		err = gzw.Close()
		if err != nil {
			return err
		}
	}
	return bufw.Flush()
}

// SaveTable writes the table to the named file, with "-" meaning
// stdout and a ".gz" suffix selecting pgzip compression.
func SaveTable(filename string, stdout io.Writer, ent *TableEntry) error {
	var output io.WriteCloser
	if filename == "-" {
		output = nopCloser{stdout}
	} else {
		var err error
		output, err = os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
		if err != nil {
			return err
		}
		defer output.Close()
	}
	err := WriteTable(output, strings.HasSuffix(filename, ".gz"), ent)
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	return output.Close()
}
