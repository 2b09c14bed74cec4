package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/jmehdipour/customers-api/internal/csvio"
	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmehdipour/customers-api/internal/service/customer"
	echo "github.com/labstack/echo/v4"
)

// CustomerService is what the handlers need from service/customer.
type CustomerService interface {
	List(ctx context.Context, search string, page, perPage int) (model.CustomerPage, error)
	Get(ctx context.Context, id int64) (*model.Customer, error)
	Create(ctx context.Context, in model.CustomerInput) (*model.Customer, error)
	Update(ctx context.Context, id int64, in model.CustomerInput) (*model.Customer, error)
	Delete(ctx context.Context, id int64) error
	Import(ctx context.Context, rows []csvio.Row) (customer.ImportResult, error)
	Export(ctx context.Context) ([]model.Customer, error)
}

var _ CustomerService = (*customer.Service)(nil)

type pagingLimits struct {
	defaultPerPage int
	maxPerPage     int
}

func listCustomersHandler(svc CustomerService, lim pagingLimits) echo.HandlerFunc {
	return func(c echo.Context) error {
		page := positiveInt(c, "page", 1)
		perPage := positiveInt(c, "per_page", lim.defaultPerPage)
		if perPage > lim.maxPerPage {
			perPage = lim.maxPerPage
		}
		search := strings.TrimSpace(c.QueryParam("search"))

		p, err := svc.List(c.Request().Context(), search, page, perPage)
		if err != nil {
			return fail(c, "list customers", err)
		}

		return c.JSON(http.StatusOK, envelope{
			Success:    true,
			Data:       p.Items,
			Pagination: pageOf(p),
		})
	}
}

func createCustomerHandler(svc CustomerService) echo.HandlerFunc {
	return func(c echo.Context) error {
		cu, err := svc.Create(c.Request().Context(), bindCustomerInput(c))
		if err != nil {
			return fail(c, "create customer", err)
		}

		return c.JSON(http.StatusCreated, envelope{
			Success: true,
			Message: "Customer created successfully",
			Data:    cu,
		})
	}
}

func getCustomerHandler(svc CustomerService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := parseID(c)
		if !ok {
			return notFound(c)
		}

		cu, err := svc.Get(c.Request().Context(), id)
		if err != nil {
			return fail(c, "get customer", err)
		}

		return c.JSON(http.StatusOK, envelope{Success: true, Data: cu})
	}
}

func updateCustomerHandler(svc CustomerService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := parseID(c)
		if !ok {
			return notFound(c)
		}

		cu, err := svc.Update(c.Request().Context(), id, bindCustomerInput(c))
		if err != nil {
			return fail(c, "update customer", err)
		}

		return c.JSON(http.StatusOK, envelope{
			Success: true,
			Message: "Customer updated successfully",
			Data:    cu,
		})
	}
}

func deleteCustomerHandler(svc CustomerService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := parseID(c)
		if !ok {
			return notFound(c)
		}

		if err := svc.Delete(c.Request().Context(), id); err != nil {
			return fail(c, "delete customer", err)
		}

		return c.JSON(http.StatusOK, envelope{
			Success: true,
			Message: "Customer deleted successfully",
		})
	}
}
