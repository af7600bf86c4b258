package reports

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	line = strings.TrimSuffix(line, "\n")
	if !strings.HasSuffix(line, "\r") {
		line += "\r"
	}
	_, err := s.buf.WriteString(line + "\n")
	return err
}

func (s *csvStreamer) writeRow(row ...string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func (s *csvStreamer) Close() error {
	return s.Flush()
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(accounting.AmountScale)
}

func writeHeader(s *csvStreamer, report, period string) error {
	if err := s.writeComment("# Report: " + report); err != nil {
		return err
	}
	return s.writeComment("# Period: " + period)
}

func periodLabel(from, to string) string {
	if from == "" {
		from = "beginning"
	}
	return from + " .. " + to
}

// WriteTrialBalanceCSV streams a trial balance.
func WriteTrialBalanceCSV(w io.Writer, tb GroupedTrialBalance) error {
	s := newCSVStreamer(w)
	if err := writeHeader(s, "Trial Balance", "as of "+tb.AsOf.Format(accounting.DateLayout)); err != nil {
		return err
	}
	if err := s.writeRow("Group", "Account Code", "Account Name", "Type", "Debit", "Credit", "Debit Balance", "Credit Balance"); err != nil {
		return err
	}
	for _, grp := range tb.Groups {
		for _, e := range grp.Entries {
			if err := s.writeRow(grp.Key, e.AccountCode, e.AccountName, string(e.AccountType),
				formatAmount(e.DebitTotal), formatAmount(e.CreditTotal),
				formatAmount(e.DebitBalance), formatAmount(e.CreditBalance)); err != nil {
				return err
			}
		}
	}
	if err := s.writeRow("Totals", "", "", "",
		formatAmount(tb.TotalDebit), formatAmount(tb.TotalCredit),
		formatAmount(tb.TotalDebitBalance), formatAmount(tb.TotalCreditBalance)); err != nil {
		return err
	}
	return s.Close()
}

// WriteIncomeStatementCSV streams an income statement.
func WriteIncomeStatementCSV(w io.Writer, is IncomeStatement) error {
	s := newCSVStreamer(w)
	if err := writeHeader(s, "Income Statement", periodLabel(is.From, is.To)); err != nil {
		return err
	}
	if err := s.writeRow("Section", "Account Code", "Account Name", "Amount", "Percent"); err != nil {
		return err
	}
	sections := []struct {
		label string
		lines []StatementLine
	}{
		{"Revenue", is.Revenue},
		{"Cost", is.Cost},
		{"Expense", is.Expense},
	}
	for _, sec := range sections {
		for _, line := range sec.lines {
			if err := s.writeRow(sec.label, line.Code, line.Name, formatAmount(line.Amount), formatAmount(line.Percent)); err != nil {
				return err
			}
		}
	}
	totals := [][]string{
		{"Totals", "", "Total Revenue", formatAmount(is.TotalRevenue), formatAmount(is.TotalRevenuePercent)},
		{"Totals", "", "Total Cost", formatAmount(is.TotalCost), formatAmount(is.TotalCostPercent)},
		{"Totals", "", "Gross Profit", formatAmount(is.GrossProfit), formatAmount(is.GrossProfitPercent)},
		{"Totals", "", "Total Expense", formatAmount(is.TotalExpense), formatAmount(is.TotalExpensePercent)},
		{"Totals", "", "Operating Income", formatAmount(is.OperatingIncome), formatAmount(is.OperatingIncomePercent)},
	}
	for _, row := range totals {
		if err := s.writeRow(row...); err != nil {
			return err
		}
	}
	return s.Close()
}

// WriteBalanceSheetCSV streams a balance sheet.
func WriteBalanceSheetCSV(w io.Writer, bs BalanceSheet) error {
	s := newCSVStreamer(w)
	if err := writeHeader(s, "Balance Sheet", "as of "+bs.AsOf); err != nil {
		return err
	}
	if err := s.writeRow("Section", "Account Code", "Account Name", "Balance"); err != nil {
		return err
	}
	for _, line := range bs.Assets {
		if err := s.writeRow("Asset", line.Code, line.Name, formatAmount(line.Amount)); err != nil {
			return err
		}
	}
	for _, line := range bs.Liabilities {
		if err := s.writeRow("Liability", line.Code, line.Name, formatAmount(line.Amount)); err != nil {
			return err
		}
	}
	totals := [][]string{
		{"Totals", "", "Total Assets", formatAmount(bs.TotalAssets)},
		{"Totals", "", "Total Liabilities", formatAmount(bs.TotalLiabilities)},
		{"Totals", "", "Equity", formatAmount(bs.Equity)},
		{"Totals", "", "Balanced", strconv.FormatBool(bs.Balanced())},
	}
	for _, row := range totals {
		if err := s.writeRow(row...); err != nil {
			return err
		}
	}
	return s.Close()
}

// WriteCashFlowCSV streams a cash flow statement.
func WriteCashFlowCSV(w io.Writer, cf CashFlowStatement) error {
	s := newCSVStreamer(w)
	if err := writeHeader(s, "Cash Flow Statement", periodLabel(cf.From, cf.To)); err != nil {
		return err
	}
	if err := s.writeRow("Activity", "Date", "Voucher", "Description", "Cash Account", "Counterpart", "Amount"); err != nil {
		return err
	}
	for _, lines := range [][]CashFlowLine{cf.Operating, cf.Investing, cf.Financing} {
		for _, line := range lines {
			if err := s.writeRow(string(line.Activity), line.Date, line.VoucherNo, line.Description,
				line.CashAccount, line.CounterpartCode, formatAmount(line.Amount)); err != nil {
				return err
			}
		}
	}
	totals := [][]string{
		{"Totals", "", "", "Opening Cash", "", "", formatAmount(cf.OpeningCash)},
		{"Totals", "", "", "Net Operating", "", "", formatAmount(cf.NetOperating)},
		{"Totals", "", "", "Net Investing", "", "", formatAmount(cf.NetInvesting)},
		{"Totals", "", "", "Net Financing", "", "", formatAmount(cf.NetFinancing)},
		{"Totals", "", "", "Net Change", "", "", formatAmount(cf.NetChange)},
		{"Totals", "", "", "Closing Cash", "", "", formatAmount(cf.ClosingCash)},
	}
	for _, row := range totals {
		if err := s.writeRow(row...); err != nil {
			return err
		}
	}
	return s.Close()
}
