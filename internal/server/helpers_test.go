package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"postapp/internal/models"
	"postapp/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		param   string
		want    uint
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"18446744073709551616", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			app := fiber.New()
			var got uint
			var gotErr error
			app.Get("/:id", func(c *fiber.Ctx) error {
				got, gotErr = parseID(c, "id", "post ID")
				return c.SendStatus(fiber.StatusNoContent)
			})

			_, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+tt.param, nil))
			require.NoError(t, err)

			if tt.wantErr {
				var appErr *models.AppError
				require.True(t, errors.As(gotErr, &appErr))
				assert.Equal(t, models.CodeValidationFailed, appErr.Code)
				assert.Equal(t, "Invalid post ID", appErr.Message)
				return
			}
			require.NoError(t, gotErr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageParams(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, defaultPageSize},
		{"?page=3&limit=5", 3, 5},
		{"?page=0", 1, defaultPageSize},
		{"?page=-2&limit=abc", 1, defaultPageSize},
		{"?page=100000000000000000&limit=100", repository.MaxPage, 100},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			app := fiber.New()
			var page, limit int
			app.Get("/", func(c *fiber.Ctx) error {
				page, limit = pageParams(c)
				return c.SendStatus(fiber.StatusNoContent)
			})

			_, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}
