package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// unixNanoToTime converts a stored UnixNano timestamp back to time.Time.
func unixNanoToTime(nanos int64) time.Time {
	return time.Unix(0, nanos)
}

// escapeLike escapes LIKE metacharacters (%, _, \) in s so it can be used
// as a literal prefix in a `LIKE ? ESCAPE '\'` clause.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// scanStringRows drains a single-string-column *sql.Rows into a slice,
// wrapping scan/iteration errors with scanMsg/iterMsg for caller context.
func scanStringRows(rows *sql.Rows, scanMsg, iterMsg string) ([]string, error) {
	var out []string

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: %w", scanMsg, err)
		}

		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("%s: %w", iterMsg, err)
	}

	rows.Close()

	return out, nil
}

// isUnderAnyRoot reports whether p equals one of roots or lives strictly
// beneath one of them.
func isUnderAnyRoot(p string, roots []string) bool {
	for _, root := range roots {
		if p == root {
			return true
		}

		if strings.HasPrefix(p, strings.TrimSuffix(root, "/")+"/") {
			return true
		}
	}

	return false
}
