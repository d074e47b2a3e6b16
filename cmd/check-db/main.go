// Package main is a diagnostic tool for testing database connectivity and
// inspecting live exam data. It connects with the server's configuration,
// prints the schema version, the cohorts, summaries of completions and
// violations, and the violation history behind every policy completion. The
// binary exits with a non-zero code on any failure so it can gate a deployment
// on a reachable, migrated database.
package main

import (
	"context"
	"fmt"
	"log"
	"io"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hogwarts-exams/proctor/internal/config"
	"github.com/hogwarts-exams/proctor/internal/db"
	"github.com/hogwarts-exams/proctor/internal/db/models"
	"github.com/hogwarts-exams/proctor/internal/db/repositories"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to read migration version: %v", err)
	}
	fmt.Printf("Schema version: %d (dirty: %v)\n", version, dirty)
	if dirty {
		log.Fatalf("Schema is dirty, fix the failed migration before deploying")
	}

	ctx := context.Background()
	sqlxDB := sqlx.NewDb(database, "postgres")

	fmt.Println("\n=== COHORTS ===")
	cohorts, err := repositories.NewCohortRepository(database).List(ctx)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	students := repositories.NewStudentRepository(sqlxDB)
	for _, c := range cohorts {
		members, err := students.ListByCohort(ctx, c.ID)
		if err != nil {
			log.Fatalf("Query failed: %v", err)
		}
		fmt.Printf("Cohort: %s (ID: %s, students: %d)\n", c.Name, c.ID, len(members))
	}

	fmt.Println("\n=== COMPLETIONS ===")
	completionRepo := repositories.NewCompletionRepository(sqlxDB)
	reasons, err := completionRepo.CountByReason(ctx)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	exams := []string{}
	for _, r := range reasons {
		fmt.Printf("%s: %s = %d\n", r.ExamID, r.Reason, r.Count)
		if len(exams) == 0 || exams[len(exams)-1] != r.ExamID {
			exams = append(exams, r.ExamID)
		}
	}

	fmt.Println("\n=== POLICY COMPLETIONS ===")
	violationRepo := repositories.NewViolationRepository(sqlxDB)
	if err := printPolicyCompletions(ctx, os.Stdout, completionRepo, violationRepo, exams); err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Println("\n=== VIOLATIONS ===")
	types, err := violationRepo.CountByType(ctx)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	total := 0
	for _, t := range types {
		fmt.Printf("%s = %d\n", t.ViolationType, t.Count)
		total += t.Count
	}
	fmt.Printf("Total violations: %d\n", total)
}

type completionLister interface {
	ListByExam(ctx context.Context, examID string) ([]models.ExamCompletion, error)
}

type violationLister interface {
	ListByStudent(ctx context.Context, examID, studentID string) ([]models.ExamViolation, error)
}

// printPolicyCompletions lists the students removed by the violation limit,
// each followed by the violations that led there
func printPolicyCompletions(ctx context.Context, w io.Writer, completions completionLister, violations violationLister, exams []string) error {
	for _, examID := range exams {
		list, err := completions.ListByExam(ctx, examID)
		if err != nil {
			return err
		}
		for _, c := range list {
			if !c.IsPolicyViolation() {
				continue
			}
			history, err := violations.ListByStudent(ctx, examID, c.StudentID)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s: student %s at %s\n", examID, c.StudentID, c.CreatedAt.UTC().Format(time.RFC3339))
			for _, v := range history {
				fmt.Fprintf(w, "  %s %s on %s\n", v.CreatedAt.UTC().Format(time.RFC3339), v.ViolationType, v.AssignmentID)
			}
		}
	}
	return nil
}
