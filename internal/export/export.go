package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
	"github.com/hashtagcpt/psychophysics-parrot/internal/store"
)

// TallyHeader is the column layout of the per-level table.
var TallyHeader = []string{"logLev", "nTrials", "nCorrect"}

const (
	SheetTallies   = "Tallies"
	SheetReversals = "Reversals"
)

// Reversal is one row of the reversals sheet.
type Reversal struct {
	Number    int
	Level     float64
	Direction staircase.Direction
}

// ReversalsFrom lists the reversals recorded in st.
func ReversalsFrom(st staircase.State) []Reversal {
	out := make([]Reversal, len(st.Reversals))
	for i, l := range st.Reversals {
		out[i] = Reversal{Number: i + 1, Level: l, Direction: st.ReversalDirections[i]}
	}
	return out
}

// #region csv
// WriteTalliesCSV writes one row per grid level.
func WriteTalliesCSV(w io.Writer, tallies []store.LevelTally) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TallyHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range tallies {
		if err := cw.Write([]string{formatLevel(t.Level), strconv.Itoa(t.NTrials), strconv.Itoa(t.NCorrect)}); err != nil {
			return fmt.Errorf("write level %d: %w", t.LevelIndex, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTalliesCSVFile creates path and writes the tally table to it.
func WriteTalliesCSVFile(path string, tallies []store.LevelTally) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteTalliesCSV(f, tallies); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// #endregion csv

// #region xlsx
// WriteWorkbook saves an XLSX file with a tallies sheet and a reversals sheet.
func WriteWorkbook(path string, tallies []store.LevelTally, reversals []Reversal) error {
	f := excelize.NewFile()
	defer f.Close()

	// The default sheet becomes the tallies sheet.
	if err := f.SetSheetName("Sheet1", SheetTallies); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	rows := make([][]any, len(tallies))
	for i, t := range tallies {
		rows[i] = []any{t.Level, t.NTrials, t.NCorrect, proportionCell(t)}
	}
	if err := writeSheet(f, SheetTallies, append(append([]string{}, TallyHeader...), "pCorrect"), rows); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetReversals); err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}
	rows = make([][]any, len(reversals))
	for i, r := range reversals {
		rows[i] = []any{r.Number, r.Level, r.Direction.String()}
	}
	if err := writeSheet(f, SheetReversals, []string{"reversal", "level", "direction"}, rows); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any) error {
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("%s header: %w", sheet, err)
		}
	}
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("%s row %d: %w", sheet, r+1, err)
			}
		}
	}
	return nil
}

// proportionCell leaves untested levels blank.
func proportionCell(t store.LevelTally) any {
	if t.NTrials == 0 {
		return nil
	}
	return t.ProportionCorrect()
}

// #endregion xlsx

func formatLevel(l float64) string {
	return strconv.FormatFloat(l, 'g', -1, 64)
}
