package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/learning-api/internal/apperr"
)

// batchConcurrency bounds the store calls one batch request may have in
// flight.
const batchConcurrency = 8

// batchFailure is one operation of a batch that did not apply.
type batchFailure struct {
	Operation any    `json:"operation"`
	Error     string `json:"error"`
}

type batchResult struct {
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Errors     []batchFailure `json:"errors"`
}

// runBatch applies every operation independently; one failure never stops
// the others. Failures are reported in request order and internal ones are
// logged in full.
func runBatch[T any](ctx context.Context, log logrus.FieldLogger, ops []T, apply func(context.Context, T) error) batchResult {
	errs := make([]error, len(ops))
	var g errgroup.Group
	g.SetLimit(batchConcurrency)
	for i, op := range ops {
		g.Go(func() error {
			errs[i] = apply(ctx, op)
			return nil
		})
	}
	_ = g.Wait()

	res := batchResult{Errors: []batchFailure{}}
	for i, err := range errs {
		if err == nil {
			res.Successful++
			continue
		}
		res.Failed++
		res.Errors = append(res.Errors, batchFailure{Operation: ops[i], Error: clientMessage(err)})
		if apperr.KindOf(err) == apperr.KindInternal && log != nil {
			log.WithError(err).WithField("operation", i).Error("batch operation failed")
		}
	}
	return res
}

// clientMessage hides internal error text from batch responses.
func clientMessage(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) && apperr.Status(ae.Kind) < http.StatusInternalServerError {
		return ae.Message
	}
	return msgUnexpected
}
