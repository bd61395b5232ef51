package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Diagnostics is a log-friendly breakdown of an error chain, including any store-level detail.
type Diagnostics struct {
	Message   string `json:"message"`
	Code      Code   `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`

	Chain []string `json:"chain,omitempty"`

	Store      string `json:"store,omitempty"`
	StoreCode  string `json:"store_code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

func Diagnose(err error) Diagnostics {
	if err == nil {
		return Diagnostics{}
	}

	d := Diagnostics{Message: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		d.Store = "postgres"
		d.StoreCode = pgxErr.Code
		d.Constraint = pgxErr.ConstraintName
		d.Table = pgxErr.TableName
		d.Detail = pgxErr.Detail
		return d
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		d.Store = "postgres"
		d.StoreCode = string(pqErr.Code)
		d.Constraint = pqErr.Constraint
		d.Table = pqErr.Table
		d.Detail = pqErr.Detail
		return d
	}

	// sqlite only reports constraints through the message text
	for _, e := range []string{"UNIQUE constraint failed", "CHECK constraint failed", "FOREIGN KEY constraint failed"} {
		if idx := strings.Index(d.Message, e); idx >= 0 {
			d.Store = "sqlite"
			d.Detail = strings.TrimSpace(d.Message[idx:])
			break
		}
	}
	return d
}
