package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/learning-api/internal/apperr"
)

const (
	msgNotFound   = "Endpoint not found"
	msgUnexpected = "An unexpected error occurred"
)

// ErrorHandler renders every error returned by a handler or middleware as an
// envelope. Expected failures carry their own status and message; anything
// else is logged in full and reported as a generic 500. With verbose set the
// underlying error text is added under details.
func ErrorHandler(log logrus.FieldLogger, verbose bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := render(err, verbose)
		if status >= http.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Request().Method,
				"route":  c.Path(),
				"uri":    c.Request().RequestURI,
			}).Error("request failed")
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.WithError(werr).Warn("write error response")
		}
	}
}

func render(err error, verbose bool) (int, Envelope) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		status := apperr.Status(ae.Kind)
		if status >= http.StatusInternalServerError {
			return internal(err, verbose)
		}
		return status, Envelope{Message: ae.Message, Errors: ae.Fields}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch {
		case he.Code == http.StatusNotFound:
			return he.Code, Envelope{Message: msgNotFound}
		case he.Code >= http.StatusInternalServerError:
			return internal(err, verbose)
		}
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return he.Code, Envelope{Message: msg}
	}
	return internal(err, verbose)
}

func internal(err error, verbose bool) (int, Envelope) {
	env := Envelope{Message: msgUnexpected}
	if verbose {
		env.Details = err.Error()
	}
	return http.StatusInternalServerError, env
}
