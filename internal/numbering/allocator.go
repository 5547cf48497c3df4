// Package numbering issues sequential human-readable document numbers.
//
// Numbers follow {PREFIX}-{YYYYMM}-{NNNN}. Allocation goes through a counter
// row keyed by (scope, period); the upsert increments and returns the value
// in one statement, so two concurrent allocations for the same scope and
// month can never observe the same counter. A unique index on the document
// number column remains as a backstop.
package numbering

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// DefaultInvoicePrefix is used when the issuing company has no prefix set.
const DefaultInvoicePrefix = "INV"

// CaseScope is the counter scope for case numbers.
const CaseScope = "case"

// Querier abstracts pgx pools and transactions so allocation can join the
// caller's transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Period formats t as the YYYYMM period key.
func Period(t time.Time) string {
	return t.Format("200601")
}

// InvoiceScope builds the counter scope for one issuing company.
func InvoiceScope(companyID int64) string {
	return fmt.Sprintf("invoice:%d", companyID)
}

// Format renders a document number from its parts.
func Format(prefix, period string, counter int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, period, counter)
}

// Parse splits a document number into prefix, period and counter.
func Parse(number string) (prefix, period string, counter int64, err error) {
	idx := strings.LastIndex(number, "-")
	if idx < 0 {
		return "", "", 0, fmt.Errorf("numbering: malformed number %q", number)
	}
	counter, err = strconv.ParseInt(number[idx+1:], 10, 64)
	if err != nil {
		return "", "", 0, fmt.Errorf("numbering: malformed counter in %q", number)
	}
	rest := number[:idx]
	idx = strings.LastIndex(rest, "-")
	if idx < 0 {
		return "", "", 0, fmt.Errorf("numbering: malformed number %q", number)
	}
	return rest[:idx], rest[idx+1:], counter, nil
}

// Next reserves the next counter value for (scope, period) on q. Safe under
// concurrency: ON CONFLICT takes a row lock, so racing transactions
// serialize on the counter row.
func Next(ctx context.Context, q Querier, scope, period string) (int64, error) {
	const query = `
		INSERT INTO number_counters (scope, period, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (scope, period)
		DO UPDATE SET last_value = number_counters.last_value + 1
		RETURNING last_value`

	var value int64
	if err := q.QueryRow(ctx, query, scope, period).Scan(&value); err != nil {
		return 0, fmt.Errorf("numbering: next %s/%s: %w", scope, period, err)
	}
	return value, nil
}

// NextInvoiceNumber allocates an invoice number for a company. An empty
// prefix falls back to DefaultInvoicePrefix.
func NextInvoiceNumber(ctx context.Context, q Querier, companyID int64, prefix string, at time.Time) (string, error) {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultInvoicePrefix
	}
	period := Period(at)
	counter, err := Next(ctx, q, InvoiceScope(companyID), period)
	if err != nil {
		return "", err
	}
	return Format(prefix, period, counter), nil
}

// NextCaseNumber allocates a case number.
func NextCaseNumber(ctx context.Context, q Querier, at time.Time) (string, error) {
	period := Period(at)
	counter, err := Next(ctx, q, CaseScope, period)
	if err != nil {
		return "", err
	}
	return Format("CASE", period, counter), nil
}
