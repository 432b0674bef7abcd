package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, query string) Pagination {
	t.Helper()
	var got Pagination
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		got = ParseFromRequest(c)
		return nil
	})
	_, err := app.Test(httptest.NewRequest("GET", "/"+query, nil))
	require.NoError(t, err)
	return got
}

func TestParseFromRequest(t *testing.T) {
	assert.Equal(t, Pagination{Page: 1, Limit: DefaultLimit, Offset: 0}, parse(t, ""))
	assert.Equal(t, Pagination{Page: 3, Limit: 10, Offset: 20}, parse(t, "?page=3&limit=10"))
	assert.Equal(t, Pagination{Page: 1, Limit: MaxLimit, Offset: 0}, parse(t, "?page=0&limit=5000"))
	assert.Equal(t, Pagination{Page: 1, Limit: DefaultLimit, Offset: 0}, parse(t, "?page=x&limit=-2"))
}

func TestResponse_TotalPages(t *testing.T) {
	body := Response(Pagination{Page: 1, Limit: 10, Total: 21}, []int{})
	meta := body["meta"].(fiber.Map)
	assert.Equal(t, int64(3), meta["total_pages"])
	assert.Equal(t, int64(21), meta["total_items"])
}
