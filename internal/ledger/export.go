package ledger

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatAmount renders an amount the way the dashboard shows it,
// e.g. 1500000 -> "1.500.000".
func FormatAmount(v decimal.Decimal) string {
	f, _ := v.Float64()
	return idPrinter.Sprint(number.Decimal(f, number.MaxFractionDigits(2)))
}

// WriteCSV streams transactions as CSV. Amounts carry the raw decimal
// value so spreadsheets can aggregate them; a formatted column is added
// for direct reading.
func WriteCSV(w io.Writer, transactions []Transaction, month, year int) error {
	writer := csv.NewWriter(w)
	writer.UseCRLF = true

	if _, err := fmt.Fprintf(w, "# Transaksi %02d/%d\r\n", month, year); err != nil {
		return err
	}

	header := []string{"Tanggal", "Tipe", "Deskripsi", "Kategori", "Referensi", "Jumlah", "Jumlah (Rp)"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, tx := range transactions {
		category := ""
		if tx.Category != nil {
			category = tx.Category.Name
		}
		row := []string{
			tx.TransactionDate.Format("2006-01-02"),
			string(tx.Type),
			tx.Description,
			category,
			tx.Reference,
			tx.Amount.String(),
			FormatAmount(tx.Amount),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
