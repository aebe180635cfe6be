// Package ingest reads Shopee seller center order exports into order lines.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/domain"
)

// ErrMissingColumn is returned when the export has no order id column.
var ErrMissingColumn = errors.New("missing required column")

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported export format")

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromName picks the format from a file name extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// Warning is a cell that could not be parsed and was read as zero.
type Warning struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// Result is the content of one export file.
type Result struct {
	Lines    []domain.OrderLine `json:"lines"`
	Skipped  int                `json:"skipped"`
	Warnings []Warning          `json:"warnings"`
}

// ReadFile opens path and reads it according to its extension.
func ReadFile(path string) (*Result, error) {
	format, err := FormatFromName(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export %s: %w", path, err)
	}
	defer f.Close()

	res, err := Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("failed to read export %s: %w", path, err)
	}
	return res, nil
}

// Read parses an export in the given format.
func Read(r io.Reader, format Format) (*Result, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatXLSX:
		return ReadXLSX(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// ReadCSV parses a CSV export. The first record is the header.
func ReadCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	p, err := newParser(header)
	if err != nil {
		return nil, err
	}

	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record %d: %w", row, err)
		}
		p.add(row, record)
	}

	return p.result(), nil
}

// ReadXLSX parses the first sheet of an XLSX export. Cells are read as
// displayed, so amounts carry the sheet's number format.
func ReadXLSX(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx file has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	var p *parser
	for row := 1; rows.Next(); row++ {
		record, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", row, err)
		}
		if p == nil {
			if p, err = newParser(record); err != nil {
				return nil, err
			}
			continue
		}
		p.add(row, record)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("error iterating rows in sheet %s: %w", sheet, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: empty sheet %s", ErrMissingColumn, sheet)
	}

	return p.result(), nil
}

type parser struct {
	header []string
	idx    columnIndex
	res    Result
}

func newParser(header []string) (*parser, error) {
	idx := newColumnIndex(header)
	if !idx.has(fieldOrderID) {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, columnAliases[fieldOrderID][0])
	}
	return &parser{
		header: header,
		idx:    idx,
		res:    Result{Lines: make([]domain.OrderLine, 0), Warnings: make([]Warning, 0)},
	}, nil
}

func (p *parser) add(row int, record []string) {
	blank := true
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			blank = false
			break
		}
	}
	if blank {
		p.res.Skipped++
		return
	}

	get := func(f field) string {
		i := p.idx[f]
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	warn := func(f field, value string, err error) {
		p.res.Warnings = append(p.res.Warnings, Warning{
			Row:    row,
			Column: p.header[p.idx[f]],
			Value:  value,
			Reason: err.Error(),
		})
	}

	amount := func(f field) decimal.Decimal {
		v := get(f)
		d, err := ParseAmount(v)
		if err != nil {
			warn(f, v, err)
		}
		return d
	}

	quantity := func(f field) int {
		v := get(f)
		n, err := ParseQuantity(v)
		if err != nil {
			warn(f, v, err)
		}
		return n
	}

	p.res.Lines = append(p.res.Lines, domain.OrderLine{
		OrderID:           get(fieldOrderID),
		TrackingNumber:    get(fieldTrackingNumber),
		OrderDate:         normalizeDate(get(fieldOrderDate)),
		OrderStatus:       get(fieldOrderStatus),
		ReturnStatus:      get(fieldReturnStatus),
		CancelReason:      get(fieldCancelReason),
		SKU:               get(fieldSKU),
		ProductName:       get(fieldProductName),
		Quantity:          quantity(fieldQuantity),
		ReturnQuantity:    quantity(fieldReturnQuantity),
		OriginalPrice:     amount(fieldOriginalPrice),
		DealPrice:         amount(fieldDealPrice),
		SellerRebate:      amount(fieldSellerRebate),
		ShopVoucher:       amount(fieldShopVoucher),
		ShopComboDiscount: amount(fieldShopComboDiscount),
		TradeInBonus:      amount(fieldTradeInBonus),
		FixedFee:          amount(fieldFixedFee),
		ServiceFee:        amount(fieldServiceFee),
		PaymentFee:        amount(fieldPaymentFee),
		ReturnShippingFee: amount(fieldReturnShippingFee),
		OrderTotalAmount:  amount(fieldOrderTotalAmount),
		PayoutDate:        normalizeDate(get(fieldPayoutDate)),
		Province:          get(fieldProvince),
		BuyerID:           get(fieldBuyerID),
	})
}

func (p *parser) result() *Result {
	res := p.res
	return &res
}
