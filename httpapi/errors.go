package httpapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-condo-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// ErrorBody is the JSON shape of every failed call
type ErrorBody struct {
	OK       bool              `json:"ok"`
	Error    string            `json:"error"`
	TextCode string            `json:"text_code,omitempty"`
	Category string            `json:"category,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

func (c *Controller) defaultErrHandler(ctx *fiber.Ctx, err error) error {
	richErr := asRichError(err)
	status := statusCode(richErr)

	c.logger.Info(
		"session api error %s %s: %s [%s] %s",
		ctx.Method(),
		ctx.OriginalURL(),
		richErr.Message,
		richErr.TextCode,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	body := ErrorBody{
		Error:    richErr.Message,
		TextCode: richErr.TextCode,
		Category: fmt.Sprint(richErr.Category),
	}

	if fields, ok := richErr.Metadata["fields"].(map[string]string); ok {
		body.Fields = fields
	}
	if redirect, ok := richErr.Metadata["redirect"].(string); ok {
		body.Redirect = redirect
	}

	return ctx.Status(status).JSON(body)
}

func asRichError(err error) *goerrors.Error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return richErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "operation timed out").
			WithTextCode(auth.TextCodeTimeout)
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "an unexpected server error occurred").
		WithCode(goerrors.CodeInternal)
}

func statusCode(richErr *goerrors.Error) int {
	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}

	switch {
	case richErr.TextCode == auth.TextCodeTimeout:
		return fiber.StatusGatewayTimeout
	case richErr.Category == goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case richErr.Category == goerrors.CategoryAuthz:
		return fiber.StatusForbidden
	case richErr.Category == goerrors.CategoryConflict:
		return fiber.StatusConflict
	case richErr.Category == goerrors.CategoryBadInput, richErr.Category == goerrors.CategoryValidation:
		return fiber.StatusBadRequest
	case richErr.Category == goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
