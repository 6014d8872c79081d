package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"task-tracker/internal/models"
	"task-tracker/internal/server"
	"task-tracker/internal/services"

	"github.com/spf13/cobra"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print derived reports from the database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "busy",
		Short: "Employees ordered by in-progress workload",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			pool, err := server.OpenDatabase(cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			employees, err := services.NewQueryService().BusyEmployees(pool.DB.WithContext(cmd.Context()))
			if err != nil {
				return err
			}
			return printBusy(cmd.OutOrStdout(), employees)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "important",
		Short: "Unstarted tasks that block in-progress work, with suggested assignees",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			pool, err := server.OpenDatabase(cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			tasks, err := services.NewQueryService().ImportantTasks(pool.DB.WithContext(cmd.Context()))
			if err != nil {
				return err
			}
			return printImportant(cmd.OutOrStdout(), tasks)
		},
	})

	return cmd
}

func printBusy(out io.Writer, employees []models.Employee) error {
	if len(employees) == 0 {
		_, err := fmt.Fprintln(out, "No employees have tasks in progress")
		return err
	}

	rows := make([][]string, 0, len(employees))
	for _, e := range employees {
		rows = append(rows, []string{strconv.FormatUint(uint64(e.ID), 10), e.FullName, e.Position})
	}
	_, err := io.WriteString(out, renderTable(
		[]string{"ID", "Full name", "Position"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft},
	))
	return err
}

func printImportant(out io.Writer, tasks []services.ImportantTask) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(out, "No important tasks")
		return err
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		names := make([]string, 0, len(t.Employees))
		for _, e := range t.Employees {
			names = append(names, e.FullName)
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(t.Task.ID), 10),
			t.Task.Name,
			t.Deadline.String(),
			strings.Join(names, ", "),
		})
	}
	_, err := io.WriteString(out, renderTable(
		[]string{"ID", "Task", "Deadline", "Suggested"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	))
	return err
}
