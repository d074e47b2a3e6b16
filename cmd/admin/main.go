// Package main is the operator tool for the proctoring database. It seeds
// cohorts, students and staff with access identifiers for local runs and
// rehearsals, and toggles identifiers for a single user or a whole cohort.
//
//	admin seed [-cohorts N] [-students N] [-staff N] [-seed N]
//	admin enable-cohort <name> | disable-cohort <name>
//	admin enable-user <user_id> | disable-user <user_id>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/jmoiron/sqlx"

	"github.com/hogwarts-exams/proctor/internal/config"
	"github.com/hogwarts-exams/proctor/internal/db"
	"github.com/hogwarts-exams/proctor/internal/db/models"
	"github.com/hogwarts-exams/proctor/internal/db/repositories"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: admin <seed|enable-cohort|disable-cohort|enable-user|disable-user> [args]")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	sqlxDB := sqlx.NewDb(database, "postgres")
	ctx := context.Background()
	identifiers := repositories.NewAccessIdentifierRepository(sqlxDB)

	switch cmd := args[0]; cmd {
	case "seed":
		fs := flag.NewFlagSet("seed", flag.ContinueOnError)
		opts := seedOptions{}
		fs.IntVar(&opts.Cohorts, "cohorts", 2, "number of cohorts")
		fs.IntVar(&opts.StudentsPerCohort, "students", 10, "students per cohort")
		fs.IntVar(&opts.Staff, "staff", 2, "number of staff members")
		fs.Int64Var(&opts.Seed, "seed", 0, "random seed (0 picks one)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}

		people, err := newPlanner(opts.Seed).plan(opts)
		if err != nil {
			return fmt.Errorf("failed to plan seed data: %w", err)
		}
		w := &seeder{
			cohorts:     repositories.NewCohortRepository(database),
			students:    repositories.NewStudentRepository(sqlxDB),
			staff:       repositories.NewStaffRepository(database),
			identifiers: identifiers,
		}
		if err := w.apply(ctx, people); err != nil {
			return err
		}
		return printIdentifiers(people)

	case "enable-cohort", "disable-cohort":
		if len(args) < 2 {
			return fmt.Errorf("usage: admin %s <cohort name>", cmd)
		}
		cohort, err := repositories.NewCohortRepository(database).GetByName(ctx, args[1])
		if err != nil {
			return err
		}
		if cohort == nil {
			return fmt.Errorf("cohort %q not found", args[1])
		}
		n, err := identifiers.SetActiveForCohort(ctx, cohort.ID, cmd == "enable-cohort")
		if err != nil {
			return err
		}
		fmt.Printf("%d identifiers updated in cohort %s\n", n, cohort.Name)
		return nil

	case "enable-user", "disable-user":
		if len(args) < 2 {
			return fmt.Errorf("usage: admin %s <user id>", cmd)
		}
		msg, err := setUserActive(ctx, identifiers, args[1], cmd == "enable-user")
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil

	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

type userIdentifiers interface {
	GetByUserID(ctx context.Context, userID string) (*models.AccessIdentifier, error)
	SetActive(ctx context.Context, userID string, active bool) (bool, error)
}

// setUserActive toggles one user's identifier, leaving it alone when it is
// already in the requested state
func setUserActive(ctx context.Context, repo userIdentifiers, userID string, active bool) (string, error) {
	current, err := repo.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", fmt.Errorf("user %s has no access identifier", userID)
	}
	if current.IsActive == active {
		return fmt.Sprintf("identifier for %s unchanged", userID), nil
	}
	if _, err := repo.SetActive(ctx, userID, active); err != nil {
		return "", err
	}
	return fmt.Sprintf("identifier for %s updated", userID), nil
}

func printIdentifiers(people *seedPlan) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tNAME\tCOHORT\tIDENTIFIER")
	for _, s := range people.Students {
		fmt.Fprintf(tw, "STUDENT\t%s %s\t%s\t%s\n", s.Student.FirstName, s.Student.LastName, s.Cohort, s.Identifier)
	}
	for _, s := range people.Staff {
		fmt.Fprintf(tw, "STAFF\t%s %s\t-\t%s\n", s.Staff.FirstName, s.Staff.LastName, s.Identifier)
	}
	return tw.Flush()
}
