package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/darasa/core"
)

// WrapDB prepares a raw handle for the repositories in this package.
func WrapDB(db *sql.DB) *sqlx.DB {
	return sqlx.NewDb(db, "postgres")
}

// ext picks the executor for a query. Service code may pass its own
// transaction; the repository's handle is used otherwise.
func ext(db *sqlx.DB, svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if e, ok := svcExec[0].(sqlx.ExtContext); ok {
			return e
		}
	}
	return db
}

func orderBy(ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		return ""
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
