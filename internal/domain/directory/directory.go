// Package directory exposes the slice of the employee directory the leave
// engine consumes: reporting chains, probation status and the HR approver
// pool. Employee administration itself lives elsewhere.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hrleave/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

type Employee struct {
	ID               string
	FirstName        string
	LastName         string
	Email            string
	Department       string
	Role             string
	ManagerID        string
	HireDate         time.Time
	ProbationEndDate *time.Time
}

var ErrEmployeeNotFound = errors.New("employee not found")

func (s *Store) Employee(ctx context.Context, employeeID string) (Employee, error) {
	var e Employee
	var managerID, department *string
	err := s.DB.QueryRow(ctx, `
    SELECT id, first_name, last_name, email, department, role, manager_id, hire_date, probation_end_date
    FROM employees
    WHERE id = $1 AND status = 'active'
  `, employeeID).Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &department, &e.Role, &managerID, &e.HireDate, &e.ProbationEndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, fmt.Errorf("%w: %s", ErrEmployeeNotFound, employeeID)
	}
	if err != nil {
		return Employee{}, err
	}
	if managerID != nil {
		e.ManagerID = *managerID
	}
	if department != nil {
		e.Department = *department
	}
	return e, nil
}

// ManagerChain walks manager_id references upward from the employee,
// returning at most maxLevels approver IDs, nearest manager first. The walk
// stops early at the top of the org or on a cycle.
func (s *Store) ManagerChain(ctx context.Context, employeeID string, maxLevels int) ([]string, error) {
	if maxLevels <= 0 {
		maxLevels = 1
	}
	var chain []string
	seen := map[string]bool{employeeID: true}
	current := employeeID
	for len(chain) < maxLevels {
		var managerID *string
		err := s.DB.QueryRow(ctx, `
      SELECT manager_id FROM employees WHERE id = $1 AND status = 'active'
    `, current).Scan(&managerID)
		if errors.Is(err, pgx.ErrNoRows) {
			break
		}
		if err != nil {
			return nil, err
		}
		if managerID == nil || *managerID == "" || seen[*managerID] {
			break
		}
		chain = append(chain, *managerID)
		seen[*managerID] = true
		current = *managerID
	}
	return chain, nil
}

func (s *Store) OnProbation(ctx context.Context, employeeID string, asOf time.Time) (bool, error) {
	e, err := s.Employee(ctx, employeeID)
	if err != nil {
		return false, err
	}
	return e.ProbationEndDate != nil && asOf.Before(*e.ProbationEndDate), nil
}

// HRApprover picks the longest-serving active HR employee as the final
// approval level when a policy requires HR sign-off.
func (s *Store) HRApprover(ctx context.Context) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    SELECT id FROM employees
    WHERE role = 'hr' AND status = 'active'
    ORDER BY hire_date
    LIMIT 1
  `).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}
