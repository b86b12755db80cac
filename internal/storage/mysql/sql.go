package mysql

const insertFeedbackSQL = `
INSERT INTO feedbacks
  (author_id, subject_id, rating, comment, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?)
`

// Update never touches author_id, subject_id or created_at.
const updateFeedbackSQL = `
UPDATE feedbacks
SET rating = ?, comment = ?, updated_at = ?
WHERE id = ?
`

const deleteFeedbackSQL = `DELETE FROM feedbacks WHERE id = ?`

const existsFeedbackSQL = `SELECT 1 FROM feedbacks WHERE id = ? LIMIT 1`

const selectColumns = `id, author_id, subject_id, rating, comment, created_at, updated_at`

const getFeedbackSQL = `
SELECT ` + selectColumns + `
FROM feedbacks
WHERE id = ?
`

const listAllSQL = `
SELECT ` + selectColumns + `
FROM feedbacks
`

const listByAuthorSQL = `
SELECT ` + selectColumns + `
FROM feedbacks
WHERE author_id = ?
ORDER BY created_at DESC, id DESC
`

const listBySubjectSQL = `
SELECT ` + selectColumns + `
FROM feedbacks
WHERE subject_id = ?
ORDER BY created_at DESC, id DESC
`

// AVG runs store-side; rounding happens in the service layer so every
// backend applies the same rule.
const avgBySubjectSQL = `SELECT AVG(rating) FROM feedbacks WHERE subject_id = ?`

const countBySubjectSQL = `SELECT COUNT(*) FROM feedbacks WHERE subject_id = ?`

const listRecentSQL = `
SELECT ` + selectColumns + `
FROM feedbacks
ORDER BY created_at DESC, id DESC
LIMIT ?
`
