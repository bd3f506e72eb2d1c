package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/p-n-ai/pai-learn/internal/progress"
)

var errHelp = errors.New("help provided")

type progressService interface {
	Recalculate(ctx context.Context, learnerID, courseID string) (*progress.RecalcReport, error)
	Prune(ctx context.Context, learnerID, courseID string) (*progress.PruneReport, error)
}

type commandLine struct {
	progress progressService
	migrate  func(ctx context.Context, command string, out io.Writer) error // nil with the memory driver
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  recalculate -learner ID [-course ID] - recompute completion against the current catalog")
	fmt.Fprintln(cli.out, "  prune -learner ID -course ID         - drop progress entries for removed content")
	fmt.Fprintln(cli.out, "  migrate [up|up-by-one|down|status|version]")
	fmt.Fprintln(cli.out, "                                       - manage the database schema (default up)")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	recalcCmd := flag.NewFlagSet("recalculate", flag.ContinueOnError)
	recalcCmd.SetOutput(cli.out)
	recalcLearner := recalcCmd.String("learner", "", "The learner whose records are recalculated.")
	recalcCourse := recalcCmd.String("course", "", "Limit to one course. All enrolled courses when empty.")

	pruneCmd := flag.NewFlagSet("prune", flag.ContinueOnError)
	pruneCmd.SetOutput(cli.out)
	pruneLearner := pruneCmd.String("learner", "", "The learner whose record is pruned.")
	pruneCourse := pruneCmd.String("course", "", "The course of the record.")

	switch args[1] {
	case "recalculate":
		if err := recalcCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *recalcLearner == "" {
			recalcCmd.Usage()
			return errHelp
		}
		report, err := cli.progress.Recalculate(ctx, *recalcLearner, *recalcCourse)
		if err != nil {
			return err
		}
		return cli.print(report)
	case "prune":
		if err := pruneCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *pruneLearner == "" || *pruneCourse == "" {
			pruneCmd.Usage()
			return errHelp
		}
		report, err := cli.progress.Prune(ctx, *pruneLearner, *pruneCourse)
		if err != nil {
			return err
		}
		return cli.print(report)
	case "migrate":
		if cli.migrate == nil {
			return errors.New("migrate requires LEARN_STORAGE_DRIVER=postgres")
		}
		command := "up"
		if len(args) > 2 {
			command = args[2]
		}
		switch command {
		case "up", "up-by-one", "down", "status", "version":
		default:
			cli.printUsage()
			return errHelp
		}
		if err := cli.migrate(ctx, command, cli.out); err != nil {
			return err
		}
		if command == "up" {
			fmt.Fprintln(cli.out, "schema up to date")
		}
		return nil
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) print(v any) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
