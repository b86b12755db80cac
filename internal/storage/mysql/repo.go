package mysql

import (
	"context"
	"database/sql"
	"strconv"

	"recipe_feedback/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// parseID maps the opaque string id onto the numeric primary key. A
// non-numeric id can never name a stored row, so it surfaces as not-found
// rather than as a parse error.
func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, domain.ErrNotFound
	}
	return n, nil
}

func formatID(n int64) string { return strconv.FormatInt(n, 10) }

func valComment(c *string) any {
	if c == nil {
		return nil
	}
	return *c
}

func (r *Repo) Save(ctx context.Context, f domain.Feedback) (domain.Feedback, error) {
	if f.ID == "" {
		res, err := r.db.ExecContext(ctx, insertFeedbackSQL,
			f.AuthorID, f.SubjectID, f.Rating, valComment(f.Comment), f.CreatedAt, f.UpdatedAt)
		if err != nil {
			return domain.Feedback{}, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return domain.Feedback{}, err
		}
		f.ID = formatID(id)
		return f, nil
	}

	id, err := parseID(f.ID)
	if err != nil {
		return domain.Feedback{}, err
	}
	if _, err := r.db.ExecContext(ctx, updateFeedbackSQL,
		f.Rating, valComment(f.Comment), f.UpdatedAt, id); err != nil {
		return domain.Feedback{}, err
	}
	return f, nil
}

func (r *Repo) FindByID(ctx context.Context, id string) (domain.Feedback, error) {
	n, err := parseID(id)
	if err != nil {
		return domain.Feedback{}, err
	}
	row := r.db.QueryRowContext(ctx, getFeedbackSQL, n)
	f, err := scanFeedback(row)
	if err == sql.ErrNoRows {
		return domain.Feedback{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Feedback{}, err
	}
	return f, nil
}

func (r *Repo) ExistsByID(ctx context.Context, id string) (bool, error) {
	n, err := parseID(id)
	if err != nil {
		return false, nil
	}
	var one int
	err = r.db.QueryRowContext(ctx, existsFeedbackSQL, n).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repo) DeleteByID(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, deleteFeedbackSQL, n)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) FindAll(ctx context.Context) ([]domain.Feedback, error) {
	return r.queryList(ctx, listAllSQL)
}

func (r *Repo) FindByAuthor(ctx context.Context, authorID string) ([]domain.Feedback, error) {
	return r.queryList(ctx, listByAuthorSQL, authorID)
}

func (r *Repo) FindBySubject(ctx context.Context, subjectID string) ([]domain.Feedback, error) {
	return r.queryList(ctx, listBySubjectSQL, subjectID)
}

func (r *Repo) CountBySubject(ctx context.Context, subjectID string) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, countBySubjectSQL, subjectID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Repo) AverageBySubject(ctx context.Context, subjectID string) (*float64, error) {
	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, avgBySubjectSQL, subjectID).Scan(&avg); err != nil {
		return nil, err
	}
	if !avg.Valid {
		return nil, nil
	}
	v := avg.Float64
	return &v, nil
}

func (r *Repo) FindRecent(ctx context.Context, n int) ([]domain.Feedback, error) {
	return r.queryList(ctx, listRecentSQL, n)
}

func (r *Repo) queryList(ctx context.Context, query string, args ...any) ([]domain.Feedback, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Feedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFeedback(s scanner) (domain.Feedback, error) {
	var (
		f       domain.Feedback
		id      int64
		comment sql.NullString
	)
	if err := s.Scan(&id, &f.AuthorID, &f.SubjectID, &f.Rating, &comment, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return domain.Feedback{}, err
	}
	f.ID = formatID(id)
	if comment.Valid {
		c := comment.String
		f.Comment = &c
	}
	return f, nil
}
