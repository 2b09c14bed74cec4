package http

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/jmehdipour/customers-api/internal/config"
	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmehdipour/customers-api/internal/repository/repotest"
	"github.com/jmehdipour/customers-api/internal/service/customer"
	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Data       json.RawMessage     `json:"data"`
	Errors     map[string][]string `json:"errors"`
	Pagination *pagination         `json:"pagination"`
}

func newTestServer(t *testing.T) (*echo.Echo, *repotest.Customers) {
	t.Helper()

	repo := repotest.NewCustomers()
	svc := customer.New(repo, &repotest.Outbox{})
	cfg := config.Config{
		Import:     config.ImportConfig{MaxKB: 2048},
		Pagination: config.PaginationConfig{DefaultPerPage: 10, MaxPerPage: 100},
	}
	return newRouter(cfg, svc, nil), repo
}

func do(e *echo.Echo, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	return do(e, method, path, strings.NewReader(body), echo.MIMEApplicationJSON)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()

	var r response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	return r
}

func createCustomer(t *testing.T, e *echo.Echo, name, email, phone string) model.Customer {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"name": name, "email": email, "phone": phone})
	rec := doJSON(e, http.MethodPost, "/customers", string(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var c model.Customer
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &c))
	return c
}

func TestCreateCustomer(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/customers", `{"name":"Alice","email":"alice@x.com","phone":"9876543210"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	r := decode(t, rec)
	assert.True(t, r.Success)
	assert.Equal(t, "Customer created successfully", r.Message)
	assert.Contains(t, string(r.Data), `"email":"alice@x.com"`)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestCreateCustomer_FormEncoded(t *testing.T) {
	e, _ := newTestServer(t)

	form := url.Values{"name": {"Bob"}, "email": {"bob@x.com"}, "phone": {"8123456789"}}
	rec := do(e, http.MethodPost, "/customers", strings.NewReader(form.Encode()), echo.MIMEApplicationForm)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreateCustomer_Uniqueness(t *testing.T) {
	e, _ := newTestServer(t)
	createCustomer(t, e, "Alice", "alice@x.com", "9123456789")

	rec := doJSON(e, http.MethodPost, "/customers", `{"name":"A2","email":"alice@x.com","phone":"9000000000"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	r := decode(t, rec)
	assert.False(t, r.Success)
	assert.Equal(t, []string{"The email has already been taken."}, r.Errors["email"])
	assert.NotContains(t, r.Errors, "phone")

	rec = doJSON(e, http.MethodPost, "/customers", `{"name":"A3","email":"a3@x.com","phone":"9123456789"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"The phone has already been taken."}, decode(t, rec).Errors["phone"])
}

func TestCreateCustomer_PhoneFormat(t *testing.T) {
	e, _ := newTestServer(t)

	for _, phone := range []string{"6123456789", "12345"} {
		rec := doJSON(e, http.MethodPost, "/customers", `{"name":"A","email":"a@x.com","phone":"`+phone+`"}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, phone)
		assert.Contains(t, decode(t, rec).Errors["phone"], "The phone field format is invalid.")
	}
}

func TestCreateCustomer_MalformedJSONIsEmptyInput(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/customers", `{"name":`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Len(t, decode(t, rec).Errors, 3)
}

func TestGetCustomer(t *testing.T) {
	e, _ := newTestServer(t)
	c := createCustomer(t, e, "Alice", "alice@x.com", "9123456789")

	rec := do(e, http.MethodGet, "/customers/1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Customer
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.Equal(t, c.ID, got.ID)

	for _, path := range []string{"/customers/99", "/customers/abc", "/customers/-1"} {
		rec = do(e, http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		r := decode(t, rec)
		assert.False(t, r.Success)
		assert.Equal(t, "Customer not found", r.Message)
	}
}

func TestUpdateCustomer_Partial(t *testing.T) {
	e, _ := newTestServer(t)
	createCustomer(t, e, "Alice", "alice@x.com", "9123456789")

	rec := doJSON(e, http.MethodPut, "/customers/1", `{"name":"Alicia"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r := decode(t, rec)
	assert.Equal(t, "Customer updated successfully", r.Message)

	var got model.Customer
	require.NoError(t, json.Unmarshal(r.Data, &got))
	assert.Equal(t, "Alicia", got.Name)
	assert.Equal(t, "alice@x.com", got.Email)
	assert.Equal(t, "9123456789", got.Phone)

	// same email and phone as itself
	rec = doJSON(e, http.MethodPut, "/customers/1", `{"email":"alice@x.com","phone":"9123456789"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateCustomer_Errors(t *testing.T) {
	e, _ := newTestServer(t)
	createCustomer(t, e, "Alice", "alice@x.com", "9123456789")
	createCustomer(t, e, "Bob", "bob@x.com", "9000000001")

	rec := doJSON(e, http.MethodPut, "/customers/5", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(e, http.MethodPut, "/customers/2", `{"email":"alice@x.com","name":null}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	r := decode(t, rec)
	assert.Equal(t, []string{"The email has already been taken."}, r.Errors["email"])
	assert.Equal(t, []string{"The name field is required."}, r.Errors["name"])
}

func TestDeleteCustomer_Twice(t *testing.T) {
	e, repo := newTestServer(t)
	createCustomer(t, e, "Alice", "alice@x.com", "9123456789")

	rec := do(e, http.MethodDelete, "/customers/1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Customer deleted successfully", decode(t, rec).Message)
	assert.Empty(t, repo.Rows)

	rec = do(e, http.MethodDelete, "/customers/1", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decode(t, rec).Success)
}

func TestListCustomers(t *testing.T) {
	e, _ := newTestServer(t)
	createCustomer(t, e, "FOOBAR Ltd", "a@x.com", "9000000001")
	createCustomer(t, e, "Bob", "bob@foo.com", "9000000002")
	createCustomer(t, e, "Carol", "carol@x.com", "9000000003")

	rec := do(e, http.MethodGet, "/customers?search=Foo", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	r := decode(t, rec)
	var items []model.Customer
	require.NoError(t, json.Unmarshal(r.Data, &items))
	assert.Len(t, items, 2)
	assert.Equal(t, &pagination{CurrentPage: 1, PerPage: 10, Total: 2, LastPage: 1}, r.Pagination)

	rec = do(e, http.MethodGet, "/customers?search=", nil, "")
	r = decode(t, rec)
	assert.Equal(t, 3, r.Pagination.Total)

	rec = do(e, http.MethodGet, "/customers?search=nothing-matches", nil, "")
	r = decode(t, rec)
	assert.True(t, r.Success)
	assert.JSONEq(t, `[]`, string(r.Data))

	rec = do(e, http.MethodGet, "/api/customers?page=2&per_page=2", nil, "")
	r = decode(t, rec)
	require.NoError(t, json.Unmarshal(r.Data, &items))
	assert.Len(t, items, 1)
	assert.Equal(t, &pagination{CurrentPage: 2, PerPage: 2, Total: 3, LastPage: 2}, r.Pagination)
}

func multipartFile(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestImportCustomers(t *testing.T) {
	e, repo := newTestServer(t)

	csv := "name,email,phone\n" +
		"Alice,alice@x.com,9123456789\n" +
		"Bob,bob@x.com,9123456789\n"
	body, ctype := multipartFile(t, "file", "customers.csv", []byte(csv))

	rec := do(e, http.MethodPost, "/customers/import", body, ctype)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r := decode(t, rec)
	assert.Equal(t, "1 customers imported successfully", r.Message)
	assert.JSONEq(t, `{"imported":1,"skipped_incomplete":0,"skipped_duplicate":1}`, string(r.Data))
	assert.Len(t, repo.Rows, 1)
}

func TestImportCustomers_FileErrors(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodPost, "/customers/import", strings.NewReader(""), echo.MIMEApplicationForm)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"The file field is required."}, decode(t, rec).Errors["file"])

	body, ctype := multipartFile(t, "file", "pic.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	rec = do(e, http.MethodPost, "/customers/import", body, ctype)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"The file field must be a file of type: csv, txt."}, decode(t, rec).Errors["file"])
}

func TestExportCustomers(t *testing.T) {
	e, _ := newTestServer(t)
	createCustomer(t, e, "Alice", "alice@x.com", "9123456789")
	createCustomer(t, e, "Bob", "bob@x.com", "9000000001")
	createCustomer(t, e, "Carol", "carol@x.com", "9000000002")

	rec := do(e, http.MethodGet, "/customers/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get(echo.HeaderContentType))
	assert.Regexp(t, `^attachment; filename=customers_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}\.csv$`,
		rec.Header().Get(echo.HeaderContentDisposition))

	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ID,Name,Email,Phone", lines[0])
	assert.Equal(t, "1,Alice,alice@x.com,9123456789", lines[1])
}

func TestHealthz(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
