// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cfe reads the input files of an equilibrium problem.
//
// A composition file (.cfe or .ocx) has one row per polymer: the count of
// each monomer followed by the free energy of the polymer in the last
// column. Files exported by NUPACK carry two leading index columns which
// are detected and dropped. A concentration file (.con) has a single
// column with the total concentration of each monomer.
package cfe

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/coffee/coffee"
)

// ErrFormat is returned for malformed input files.
var ErrFormat = errors.New("cfe: malformed input")

// Number of leading rows inspected to recognise NUPACK index columns.
const nupackSample = 20

// Input is the parsed content of a composition and a concentration file.
type Input struct {
	Composition    *mat.Dense // N×M monomer counts
	Energies       []float64  // N polymer free energies
	Concentrations []float64  // M monomer concentrations
	Nupack         bool       // Whether index columns were dropped
}

// Problem assembles an equilibrium problem from the input.
func (in *Input) Problem(opts coffee.Options) *coffee.Problem {
	return &coffee.Problem{
		Monomers: in.Concentrations,
		Polymers: in.Composition,
		Energies: in.Energies,
		Options:  opts,
	}
}

// Read parses the content of a composition file and a concentration file.
func Read(cfe, con []byte) (*Input, error) {

	delim, err := detectDelimiter(cfe)
	if err != nil {
		return nil, err
	}

	rows, err := splitRows(cfe, delim)
	if err != nil {
		return nil, fmt.Errorf("%w: composition: %w", ErrFormat, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: composition file is empty", ErrFormat)
	}

	width := len(rows[0])
	for r, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: composition row %d has %d columns, want %d", ErrFormat, r+1, len(row), width)
		}
	}
	if width < 2 {
		return nil, fmt.Errorf("%w: composition needs at least one monomer and an energy column", ErrFormat)
	}

	in := &Input{Nupack: isNupack(rows)}
	first := 0
	if in.Nupack {
		first = 2
	}

	n, m := len(rows), width-1-first
	data := make([]float64, 0, n*m)
	in.Energies = make([]float64, n)
	for r, row := range rows {
		for c := first; c < width-1; c++ {
			v, err := parseCell(row[c], true)
			if err != nil {
				return nil, fmt.Errorf("%w: composition row %d column %d: %w", ErrFormat, r+1, c+1, err)
			}
			data = append(data, v)
		}
		e, err := parseCell(row[width-1], false)
		if err != nil {
			return nil, fmt.Errorf("%w: energy of row %d: %w", ErrFormat, r+1, err)
		}
		in.Energies[r] = e
	}
	in.Composition = mat.NewDense(n, m, data)

	if in.Concentrations, err = readColumn(con); err != nil {
		return nil, err
	}
	return in, nil
}

// detectDelimiter returns the first byte that cannot belong to a number.
func detectDelimiter(content []byte) (byte, error) {
	seen := false
	for _, b := range content {
		switch {
		case '0' <= b && b <= '9', 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z':
			seen = true
		case b == '.' || b == '+' || b == '-':
			seen = true
		case b == '\n' || b == '\r':
			if seen {
				return 0, fmt.Errorf("%w: composition has a single column", ErrFormat)
			}
		default:
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: failed to detect delimiter", ErrFormat)
}

func isBlank(b byte) bool {
	return b == ' ' || b == '\t'
}

// splitRows splits the content into trimmed cells. Blank lines are skipped
// and runs of a whitespace delimiter count as one.
func splitRows(content []byte, delim byte) ([][]string, error) {
	var rows [][]string
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(nil, 1<<24)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var cells []string
		if isBlank(delim) {
			cells = strings.Fields(line)
		} else {
			cells = strings.Split(line, string(delim))
			for i, c := range cells {
				cells[i] = strings.TrimSpace(c)
			}
		}
		rows = append(rows, cells)
	}
	return rows, sc.Err()
}

// isNupack reports whether the leading rows are numbered 1, 2, ... in the
// first column with a constant 1 in the second.
func isNupack(rows [][]string) bool {
	if len(rows[0]) < 4 {
		return false
	}
	for r := 0; r < min(nupackSample, len(rows)); r++ {
		idx, err1 := strconv.ParseInt(rows[r][0], 10, 64)
		one, err2 := strconv.ParseInt(rows[r][1], 10, 64)
		if err1 != nil || err2 != nil || idx != int64(r+1) || one != 1 {
			return false
		}
	}
	return true
}

func parseCell(s string, emptyZero bool) (float64, error) {
	if s == "" {
		if emptyZero {
			return 0, nil
		}
		return 0, errors.New("empty cell")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

// readColumn parses a concentration file with exactly one value per line.
func readColumn(content []byte) ([]float64, error) {
	var col []float64
	sc := bufio.NewScanner(bytes.NewReader(content))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\t'
		})
		if len(fields) != 1 || strings.ContainsAny(text, ",;") {
			return nil, fmt.Errorf("%w: concentration line %d must have exactly one column", ErrFormat, line)
		}
		v, err := parseCell(fields[0], false)
		if err != nil {
			return nil, fmt.Errorf("%w: concentration line %d: %w", ErrFormat, line, err)
		}
		col = append(col, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: concentration: %w", ErrFormat, err)
	}
	if len(col) == 0 {
		return nil, fmt.Errorf("%w: concentration file is empty", ErrFormat)
	}
	return col, nil
}
