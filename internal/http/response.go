package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/customers-api/internal/logger"
	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmehdipour/customers-api/internal/service/customer"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const msgNotFound = "Customer not found"

// envelope is the JSON wrapper of every non-export response.
type envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message,omitempty"`
	Data       any                 `json:"data,omitempty"`
	Errors     map[string][]string `json:"errors,omitempty"`
	Pagination *pagination         `json:"pagination,omitempty"`
}

type pagination struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

func pageOf(p model.CustomerPage) *pagination {
	return &pagination{
		CurrentPage: p.Page,
		PerPage:     p.PerPage,
		Total:       p.Total,
		LastPage:    p.LastPage,
	}
}

func notFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, envelope{Message: msgNotFound})
}

// fail maps a service error to its status; unexpected errors are logged and
// hidden behind a generic message.
func fail(c echo.Context, op string, err error) error {
	var ve *customer.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusUnprocessableEntity, envelope{Errors: ve.Errors})
	case errors.Is(err, customer.ErrNotFound):
		return notFound(c)
	}

	logger.Log.Error(op+" failed",
		zap.Error(err),
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
	)
	return c.JSON(http.StatusInternalServerError, envelope{Message: "Internal server error"})
}
