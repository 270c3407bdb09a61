package progress

import (
	"context"
	"database/sql"

	"github.com/pot-code/course-progress/internal/infrastructure/driver"
	"go.elastic.co/apm"
)

// SQLCompletionStore keeps completion sets in the completed_lesson table
//
//	CREATE TABLE completed_lesson (
//	    learner_id VARCHAR(64) NOT NULL,
//	    course_id  VARCHAR(64) NOT NULL,
//	    lesson_id  VARCHAR(64) NOT NULL,
//	    created_at TIMESTAMP   NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    PRIMARY KEY (learner_id, course_id, lesson_id)
//	);
type SQLCompletionStore struct {
	Conn driver.ITransactionalDB
}

var _ CompletionStore = &SQLCompletionStore{}

// NewSQLCompletionStore .
func NewSQLCompletionStore(Conn driver.ITransactionalDB) *SQLCompletionStore {
	return &SQLCompletionStore{Conn}
}

func (ss *SQLCompletionStore) Load(ctx context.Context, learnerID, courseID string) ([]string, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "SQLCompletionStore.Load", "db.sql")
	defer apmSpan.End()

	rows, err := ss.Conn.QueryContext(ctx, `
SELECT
    lesson_id
FROM
    completed_lesson
WHERE
    learner_id = $1 AND course_id = $2
ORDER BY created_at`, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var lessonID string
		if err := rows.Scan(&lessonID); err != nil {
			return nil, err
		}
		result = append(result, lessonID)
	}
	return result, nil
}

func (ss *SQLCompletionStore) Add(ctx context.Context, learnerID, courseID, lessonID string) (bool, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "SQLCompletionStore.Add", "db.sql")
	defer apmSpan.End()

	_, err := ss.Conn.ExecContext(ctx, `
INSERT INTO completed_lesson(learner_id, course_id, lesson_id)
VALUES($1, $2, $3)`, learnerID, courseID, lessonID)
	if driver.IsDuplicateKey(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddAll inserts the missing lessons in one transaction, lessons already stored are skipped
func (ss *SQLCompletionStore) AddAll(ctx context.Context, learnerID, courseID string, lessonIDs []string) (n int, err error) {
	if len(lessonIDs) == 0 {
		return 0, nil
	}
	apmSpan, ctx := apm.StartSpan(ctx, "SQLCompletionStore.AddAll", "db.sql")
	defer apmSpan.End()

	tx, err := ss.Conn.BeginTx(ctx, &driver.TxOptions{
		Isolation:  sql.LevelReadCommitted,
		AccessMode: driver.AccessReadWrite,
	})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
			n = 0
		}
	}()

	existing, err := (&SQLCompletionStore{tx}).Load(ctx, learnerID, courseID)
	if err != nil {
		return 0, err
	}
	stored := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		stored[id] = struct{}{}
	}
	for _, id := range lessonIDs {
		if _, ok := stored[id]; ok {
			continue
		}
		if _, err = tx.ExecContext(ctx, `
INSERT INTO completed_lesson(learner_id, course_id, lesson_id)
VALUES($1, $2, $3)`, learnerID, courseID, id); err != nil {
			return 0, err
		}
		stored[id] = struct{}{}
		n++
	}
	return n, tx.Commit(ctx)
}
