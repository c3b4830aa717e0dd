package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fge-test-platform/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader loads question banks from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

const selectQuestions = `
SELECT id, category, question_text, COALESCE(question_text_fr, ''),
       option_a, option_b, option_c, option_d, correct_answer,
       COALESCE(image_url, ''), difficulty, COALESCE(explanation, '')
FROM questions
WHERE category = $1
ORDER BY id`

func (l *QuestionLoader) LoadQuestions(ctx context.Context, category string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, selectQuestions, category)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var (
			id                     int64
			q                      domain.Question
			optA, optB, optC, optD string
		)
		if err := rows.Scan(&id, &q.Category, &q.Text, &q.TextFr,
			&optA, &optB, &optC, &optD, &q.CorrectAnswer,
			&q.ImageURL, &q.Difficulty, &q.Explanation); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.ID = strconv.FormatInt(id, 10)
		q.Options = map[string]string{"A": optA, "B": optB, "C": optC, "D": optD}
		if q.ImageURL != "" && !strings.HasPrefix(q.ImageURL, "/") && !strings.Contains(q.ImageURL, "://") {
			q.ImageURL = "/uploads/" + q.ImageURL
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out, nil
}
