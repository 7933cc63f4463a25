package recorder

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zeusync/spotlight/internal/experiment"
)

// Delimiter separates the columns of a session row.
const Delimiter = ",\t"

// Columns is the implicit row schema. Rows are written without a header.
var Columns = []string{
	"subject_id", "handedness", "trial_number", "device", "task", "elapsed_time",
	"pos_x", "pos_y", "pos_z",
	"rot_x", "rot_y", "rot_z",
	"intensity",
}

// Row is one decoded line of a session file.
type Row struct {
	SubjectID   int
	Handedness  experiment.Handedness
	Measurement experiment.TrialMeasurement
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// EncodeRow formats one measurement as a session row, without line ending.
func EncodeRow(subjectID int, handedness experiment.Handedness, m experiment.TrialMeasurement) string {
	fields := [...]string{
		strconv.Itoa(subjectID),
		handedness.String(),
		strconv.Itoa(m.TrialNumber),
		m.Device.String(),
		m.Task.String(),
		ftoa(m.ElapsedTime),
		ftoa(m.Position.X), ftoa(m.Position.Y), ftoa(m.Position.Z),
		ftoa(m.Orientation.X), ftoa(m.Orientation.Y), ftoa(m.Orientation.Z),
		ftoa(m.Intensity),
	}
	return strings.Join(fields[:], Delimiter)
}

// ParseRow decodes a line produced by EncodeRow.
func ParseRow(line string) (Row, error) {
	parts := strings.Split(strings.TrimRight(line, "\r\n"), Delimiter)
	if len(parts) != len(Columns) {
		return Row{}, fmt.Errorf("%w: want %d columns, got %d", ErrMalformedRow, len(Columns), len(parts))
	}

	var (
		row Row
		err error
	)
	if row.SubjectID, err = strconv.Atoi(parts[0]); err != nil {
		return Row{}, fmt.Errorf("%w: subject_id: %w", ErrMalformedRow, err)
	}
	if row.Handedness, err = experiment.ParseHandedness(parts[1]); err != nil {
		return Row{}, fmt.Errorf("%w: %w", ErrMalformedRow, err)
	}

	m := &row.Measurement
	if m.TrialNumber, err = strconv.Atoi(parts[2]); err != nil {
		return Row{}, fmt.Errorf("%w: trial_number: %w", ErrMalformedRow, err)
	}
	if m.Device, err = experiment.ParseDevice(parts[3]); err != nil {
		return Row{}, fmt.Errorf("%w: %w", ErrMalformedRow, err)
	}
	if m.Task, err = experiment.ParseTask(parts[4]); err != nil {
		return Row{}, fmt.Errorf("%w: %w", ErrMalformedRow, err)
	}

	floats := []*float64{
		&m.ElapsedTime,
		&m.Position.X, &m.Position.Y, &m.Position.Z,
		&m.Orientation.X, &m.Orientation.Y, &m.Orientation.Z,
		&m.Intensity,
	}
	for i, dst := range floats {
		col := 5 + i
		if *dst, err = strconv.ParseFloat(parts[col], 64); err != nil {
			return Row{}, fmt.Errorf("%w: %s: %w", ErrMalformedRow, Columns[col], err)
		}
	}
	return row, nil
}

// WriteSession writes one row per measurement slot, in slot order, and
// flushes before returning.
func WriteSession(w io.Writer, s experiment.SubjectSession) (err error) {
	bw := bufio.NewWriter(w)
	defer func() {
		if ferr := bw.Flush(); err == nil && ferr != nil {
			err = fmt.Errorf("flush session rows: %w", ferr)
		}
	}()

	for _, m := range s.Measurements {
		if _, err = bw.WriteString(EncodeRow(s.SubjectID, s.Handedness, m)); err != nil {
			return fmt.Errorf("write trial %d: %w", m.TrialNumber, err)
		}
		if err = bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("write trial %d: %w", m.TrialNumber, err)
		}
	}
	return nil
}

// ReadSession parses every non-empty line of r.
func ReadSession(r io.Reader) ([]Row, error) {
	var rows []Row
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		row, err := ParseRow(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	return rows, nil
}
