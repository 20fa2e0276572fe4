// Package dataset loads the customer CSV, fetching a copy from a remote URL
// when the local file does not exist.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"segmenter/internal/core"
)

// Header is the column layout of the customer CSV.
var Header = []string{"CustomerID", "Gender", "Age", "Annual Income (k$)", "Spending Score (1-100)"}

// ErrEmptyDataset is returned when a CSV has a header but no records.
var ErrEmptyDataset = errors.New("dataset has no records")

// ReadCSV parses customer records from r. The header must match Header
// (surrounding whitespace ignored).
func ReadCSV(r io.Reader) ([]core.Customer, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var customers []core.Customer
	seen := make(map[int]int)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		line, _ := reader.FieldPos(0)

		c, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if prev, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("line %d: duplicate CustomerID %d (first seen on line %d)", line, c.ID, prev)
		}
		seen[c.ID] = line
		customers = append(customers, c)
	}

	if len(customers) == 0 {
		return nil, ErrEmptyDataset
	}
	return customers, nil
}

// ReadFile opens path and parses it with ReadCSV.
func ReadFile(path string) ([]core.Customer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()

	customers, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}
	return customers, nil
}

func checkHeader(header []string) error {
	for i, want := range Header {
		if got := strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")); got != want {
			return fmt.Errorf("unexpected column %d: got %q, want %q", i+1, got, want)
		}
	}
	return nil
}

func parseRow(row []string) (core.Customer, error) {
	ints := make([]int, 0, 4)
	for _, idx := range []int{0, 2, 3, 4} {
		v, err := strconv.Atoi(strings.TrimSpace(row[idx]))
		if err != nil {
			return core.Customer{}, fmt.Errorf("column %q: %w", Header[idx], err)
		}
		ints = append(ints, v)
	}

	gender, err := core.ParseGender(strings.TrimSpace(row[1]))
	if err != nil {
		return core.Customer{}, err
	}

	c := core.Customer{
		ID:            ints[0],
		Gender:        gender,
		Age:           ints[1],
		AnnualIncome:  ints[2],
		SpendingScore: ints[3],
	}
	if c.SpendingScore < 1 || c.SpendingScore > 100 {
		return core.Customer{}, fmt.Errorf("spending score %d out of range 1-100", c.SpendingScore)
	}
	if c.Age < 0 || c.AnnualIncome < 0 {
		return core.Customer{}, fmt.Errorf("negative age or income")
	}
	return c, nil
}

// WriteCSV writes customers with the canonical header.
func WriteCSV(w io.Writer, customers []core.Customer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, c := range customers {
		if err := writer.Write(Row(c)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Row renders a customer in Header column order.
func Row(c core.Customer) []string {
	return []string{
		strconv.Itoa(c.ID),
		c.Gender.String(),
		strconv.Itoa(c.Age),
		strconv.Itoa(c.AnnualIncome),
		strconv.Itoa(c.SpendingScore),
	}
}
