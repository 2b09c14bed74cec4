package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/jmehdipour/customers-api/internal/csvio"
	"github.com/jmehdipour/customers-api/internal/logger"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func importCustomersHandler(svc CustomerService, maxKB int) echo.HandlerFunc {
	return func(c echo.Context) error {
		fh, err := c.FormFile("file")
		if err != nil {
			fh = nil
		}

		if errs := csvio.CheckUpload(fh, maxKB); errs != nil {
			logger.Log.Error("import failed - validation errors", zap.Any("errors", errs))
			return c.JSON(http.StatusUnprocessableEntity, envelope{Errors: errs})
		}

		f, err := fh.Open()
		if err != nil {
			return fail(c, "open upload", err)
		}
		defer f.Close()

		rows, err := csvio.ParseImport(f)
		if err != nil {
			errs := map[string][]string{"file": {"The file field must be a valid CSV file."}}
			logger.Log.Error("import failed - validation errors", zap.Any("errors", errs), zap.Error(err))
			return c.JSON(http.StatusUnprocessableEntity, envelope{Errors: errs})
		}

		res, err := svc.Import(c.Request().Context(), rows)
		if err != nil {
			return fail(c, "import customers", err)
		}

		logger.Log.Info(fmt.Sprintf("import completed - %d customers imported.", res.Imported),
			zap.Int("imported", res.Imported),
			zap.Int("skipped_incomplete", res.Incomplete),
			zap.Int("skipped_duplicate", res.Duplicate),
		)

		return c.JSON(http.StatusOK, envelope{
			Success: true,
			Message: fmt.Sprintf("%d customers imported successfully", res.Imported),
			Data:    res,
		})
	}
}

func exportCustomersHandler(svc CustomerService, now func() time.Time) echo.HandlerFunc {
	return func(c echo.Context) error {
		customers, err := svc.Export(c.Request().Context())
		if err != nil {
			return fail(c, "export customers", err)
		}

		var buf bytes.Buffer
		if err := csvio.WriteExport(&buf, customers); err != nil {
			return fail(c, "write export", err)
		}

		logger.Log.Info(fmt.Sprintf("export completed - %d customers exported.", len(customers)),
			zap.Int("exported", len(customers)))

		c.Response().Header().Set(echo.HeaderContentDisposition,
			"attachment; filename="+csvio.ExportFilename(now()))
		return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
	}
}
