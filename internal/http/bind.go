package http

import (
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jmehdipour/customers-api/internal/model"
	echo "github.com/labstack/echo/v4"
)

// bindCustomerInput decodes a JSON or form body, keeping track of which
// fields were sent. A body that is not a JSON object decodes to no fields.
func bindCustomerInput(c echo.Context) model.CustomerInput {
	var in model.CustomerInput
	req := c.Request()

	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		body, err := io.ReadAll(req.Body)
		if err != nil || json.Unmarshal(body, &in) != nil {
			return model.CustomerInput{}
		}
		return in
	}

	params, err := c.FormParams()
	if err != nil {
		return in
	}
	for key, dst := range map[string]*model.OptionalString{
		"name":  &in.Name,
		"email": &in.Email,
		"phone": &in.Phone,
	} {
		if vals, ok := params[key]; ok && len(vals) > 0 {
			*dst = model.Some(vals[0])
		}
	}
	return in
}

// parseID returns false for anything that cannot be a stored id.
func parseID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// positiveInt reads a query param, falling back to def when absent or invalid.
func positiveInt(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
