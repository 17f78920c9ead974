// Package holidays provides the organisation's non-working date calendar.
// Holiday administration is external; the leave engine only reads it.
package holidays

import (
	"context"
	"time"

	"hrleave/internal/platform/querier"
)

const dateKey = "2006-01-02"

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

// NonWorkingDates returns the holiday dates within [from, to] keyed as
// YYYY-MM-DD, the shape the day-count decomposer consumes.
func (s *Store) NonWorkingDates(ctx context.Context, from, to time.Time) (map[string]bool, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT date FROM holidays
    WHERE date >= $1 AND date <= $2
  `, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dates := map[string]bool{}
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates[d.Format(dateKey)] = true
	}
	return dates, rows.Err()
}

type Holiday struct {
	ID     string    `json:"id"`
	Date   time.Time `json:"date"`
	Name   string    `json:"name"`
	Region string    `json:"region,omitempty"`
}

func (s *Store) List(ctx context.Context, year int) ([]Holiday, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, date, name, region FROM holidays
    WHERE EXTRACT(YEAR FROM date) = $1
    ORDER BY date
  `, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Holiday
	for rows.Next() {
		var h Holiday
		var region *string
		if err := rows.Scan(&h.ID, &h.Date, &h.Name, &region); err != nil {
			return nil, err
		}
		if region != nil {
			h.Region = *region
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
