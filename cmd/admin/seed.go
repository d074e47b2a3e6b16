package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/hogwarts-exams/proctor/internal/auth"
	"github.com/hogwarts-exams/proctor/internal/db/models"
)

type seedOptions struct {
	Cohorts           int
	StudentsPerCohort int
	Staff             int
	Seed              int64
}

type seededStudent struct {
	Student    models.Student
	Cohort     string
	Identifier string
}

type seededStaff struct {
	Staff      models.Staff
	Identifier string
}

// seedPlan is everything one seed run inserts
type seedPlan struct {
	Cohorts  []string
	Students []seededStudent
	Staff    []seededStaff
}

// planner draws people from a seeded faker. Access identifiers are secrets and
// come from mint, never from the faker, so a known seed reveals no logins.
type planner struct {
	faker *gofakeit.Faker
	mint  func(prefix string) (string, error)
}

func newPlanner(seed int64) *planner {
	return &planner{faker: gofakeit.New(seed), mint: auth.GenerateIdentifier}
}

func (p *planner) plan(opts seedOptions) (*seedPlan, error) {
	out := &seedPlan{}
	names := map[string]bool{}
	for len(out.Cohorts) < opts.Cohorts {
		name := fmt.Sprintf("%s-%d", strings.ToLower(p.faker.Color()), p.faker.Number(2000, 2099))
		if names[name] {
			continue
		}
		names[name] = true
		out.Cohorts = append(out.Cohorts, name)
	}

	for _, cohort := range out.Cohorts {
		for i := 0; i < opts.StudentsPerCohort; i++ {
			identifier, err := p.mint(cohort)
			if err != nil {
				return nil, err
			}
			first, last := p.faker.FirstName(), p.faker.LastName()
			out.Students = append(out.Students, seededStudent{
				Student: models.Student{
					FirstName:  first,
					LastName:   last,
					Email:      p.email(first, last),
					Identifier: p.faker.Numerify("S########"),
					IsActive:   true,
				},
				Cohort:     cohort,
				Identifier: identifier,
			})
		}
	}

	for i := 0; i < opts.Staff; i++ {
		identifier, err := p.mint("staff")
		if err != nil {
			return nil, err
		}
		first, last := p.faker.FirstName(), p.faker.LastName()
		out.Staff = append(out.Staff, seededStaff{
			Staff:      models.Staff{FirstName: first, LastName: last, Email: p.email(first, last)},
			Identifier: identifier,
		})
	}
	return out, nil
}

func (p *planner) email(first, last string) string {
	return strings.ToLower(first+"."+last) + fmt.Sprintf("%d@", p.faker.Number(1, 999)) + p.faker.DomainName()
}

type seeder struct {
	cohorts interface {
		Create(ctx context.Context, c *models.Cohort) error
	}
	students interface {
		Create(ctx context.Context, s *models.Student) error
	}
	staff interface {
		Create(ctx context.Context, s *models.Staff) error
	}
	identifiers interface {
		Create(ctx context.Context, a *models.AccessIdentifier) error
	}
}

// apply inserts the plan, filling in the ids the repositories assign
func (s *seeder) apply(ctx context.Context, plan *seedPlan) error {
	cohortIDs := map[string]string{}
	for _, name := range plan.Cohorts {
		c := &models.Cohort{Name: name}
		if err := s.cohorts.Create(ctx, c); err != nil {
			return fmt.Errorf("failed to create cohort %s: %w", name, err)
		}
		cohortIDs[name] = c.ID
	}

	for i := range plan.Students {
		st := &plan.Students[i]
		id := cohortIDs[st.Cohort]
		st.Student.CohortID = &id
		if err := s.students.Create(ctx, &st.Student); err != nil {
			return fmt.Errorf("failed to create student %s: %w", st.Student.Email, err)
		}
		if err := s.identifiers.Create(ctx, &models.AccessIdentifier{
			Identifier: st.Identifier,
			UserID:     st.Student.ID,
			IsActive:   true,
		}); err != nil {
			return fmt.Errorf("failed to create identifier for %s: %w", st.Student.Email, err)
		}
	}

	for i := range plan.Staff {
		sf := &plan.Staff[i]
		if err := s.staff.Create(ctx, &sf.Staff); err != nil {
			return fmt.Errorf("failed to create staff %s: %w", sf.Staff.Email, err)
		}
		if err := s.identifiers.Create(ctx, &models.AccessIdentifier{
			Identifier: sf.Identifier,
			UserID:     sf.Staff.ID,
			IsActive:   true,
		}); err != nil {
			return fmt.Errorf("failed to create identifier for %s: %w", sf.Staff.Email, err)
		}
	}
	return nil
}
