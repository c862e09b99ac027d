package errs_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ardanlabs/loans/business/web/errs"
)

var errMissing = errors.New("missing")

func Test_Map(t *testing.T) {
	rules := []errs.Rule{
		{Target: errMissing, Status: http.StatusNotFound},
	}

	type table struct {
		name   string
		err    error
		status int
	}

	tt := []table{
		{name: "direct", err: errMissing, status: http.StatusNotFound},
		{name: "wrapped", err: fmt.Errorf("loading: %w", errMissing), status: http.StatusNotFound},
		{name: "unknown", err: errors.New("boom"), status: 0},
	}

	for _, tst := range tt {
		t.Run(tst.name, func(t *testing.T) {
			err := errs.Map(tst.err, rules...)

			var status int
			if te := errs.GetTrusted(err); te != nil {
				status = te.Status
			}

			if status != tst.status {
				t.Logf("got: %d", status)
				t.Logf("exp: %d", tst.status)
				t.Fatalf("Should map the error to the status.")
			}

			if !errors.Is(err, tst.err) {
				t.Fatalf("Should keep the original error reachable.")
			}
		})
	}

	if errs.Map(nil, rules...) != nil {
		t.Fatalf("Should map a nil error to nil.")
	}
}
