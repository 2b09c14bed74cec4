package csvio

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/jmehdipour/customers-api/internal/model"
)

var exportHeader = []string{"ID", "Name", "Email", "Phone"}

// WriteExport writes the header and one row per customer, in the given order.
func WriteExport(w io.Writer, customers []model.Customer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, c := range customers {
		if err := cw.Write([]string{strconv.FormatInt(c.ID, 10), c.Name, c.Email, c.Phone}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename names an export taken at t, e.g. customers_2024-05-01_13-04-05.csv.
func ExportFilename(t time.Time) string {
	return "customers_" + t.Format("2006-01-02_15-04-05") + ".csv"
}
