package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-kit/log/level"

	"github.com/grafana/cqlstore/pkg/cql/cassandra"
	"github.com/grafana/cqlstore/pkg/dao"
)

const dayLayout = "2006-01-02"

// userActivitySchema is the table the dao package reads and writes.
var userActivitySchema = cassandra.TableDesc{
	Name: dao.UserActivityTable,
	Columns: []cassandra.Column{
		{Name: "pid", Type: "text"},
		{Name: "uid", Type: "text"},
		{Name: "day", Type: "timestamp"},
		{Name: "moneySpent", Type: "double"},
	},
	PrimaryKey: dao.UserActivityKey,
}

type addCommand struct {
	g     *globals
	pid   string
	uid   string
	day   string
	money float64
}

func (cmd *addCommand) run(_ *kingpin.ParseContext) error {
	activity, err := cmd.activity()
	if err != nil {
		return err
	}
	ctx := context.Background()
	s, err := cmd.g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.activities.Save(ctx, activity)
	if err != nil {
		return err
	}
	return reportWrite("saved", n, 1)
}

func (cmd *addCommand) activity() (dao.UserActivity, error) {
	day, err := time.Parse(dayLayout, cmd.day)
	if err != nil {
		return dao.UserActivity{}, fmt.Errorf("invalid day %q, expected YYYY-MM-DD: %w", cmd.day, err)
	}
	return dao.UserActivity{PID: cmd.pid, UID: cmd.uid, Day: day, MoneySpent: cmd.money}, nil
}

func addAddCommand(app *kingpin.Application, g *globals) {
	cmd := &addCommand{g: g}
	c := app.Command("add", "Add or update the activity of a user on a product.").Action(cmd.run)
	c.Arg("pid", "Product ID.").Required().StringVar(&cmd.pid)
	c.Arg("uid", "User ID.").Required().StringVar(&cmd.uid)
	c.Arg("day", "Day of the activity (YYYY-MM-DD).").Required().StringVar(&cmd.day)
	c.Arg("money", "Money spent.").Required().Float64Var(&cmd.money)
}

type deleteCommand struct {
	g   *globals
	pid string
	uid string
}

func (cmd *deleteCommand) run(_ *kingpin.ParseContext) error {
	ctx := context.Background()
	s, err := cmd.g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.activities.Remove(ctx, dao.UserActivity{PID: cmd.pid, UID: cmd.uid})
	if err != nil {
		return err
	}
	return reportWrite("deleted", n, 1)
}

func addDeleteCommand(app *kingpin.Application, g *globals) {
	cmd := &deleteCommand{g: g}
	c := app.Command("delete", "Delete the activity of a user on a product.").Action(cmd.run)
	c.Arg("pid", "Product ID.").Required().StringVar(&cmd.pid)
	c.Arg("uid", "User ID.").Required().StringVar(&cmd.uid)
}

func reportWrite(verb string, n, want int) error {
	if n != want {
		return fmt.Errorf("%s %d of %d records, see logs for the failed requests", verb, n, want)
	}
	color.Green("%s %d record(s)", verb, n)
	return nil
}

type listCommand struct {
	g      *globals
	stream bool
}

func (cmd *listCommand) run(_ *kingpin.ParseContext) error {
	ctx := context.Background()
	s, err := cmd.g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if cmd.stream {
		return cmd.printStream(ctx, s)
	}
	activities, err := s.activities.ListByDay(ctx)
	if err != nil {
		return err
	}
	printActivities(activities)
	return nil
}

func (cmd *listCommand) printStream(ctx context.Context, s *store) error {
	batches := 0
	ok, err := s.activities.SelectStream(ctx, func(batch []dao.UserActivity) error {
		batches++
		color.New(color.Bold).Printf("batch %d:\n", batches)
		printActivities(batch)
		return nil
	})
	if err != nil {
		return err
	}
	if !ok {
		level.Warn(s.logger).Log("msg", "listing is incomplete", "batches", batches)
	}
	return nil
}

func addListCommand(app *kingpin.Application, g *globals) {
	cmd := &listCommand{g: g}
	c := app.Command("list", "List every activity, oldest day first.").Default().Action(cmd.run)
	c.Flag("stream", "Print the rows window by window as they are read, unsorted.").BoolVar(&cmd.stream)
}

func printActivities(activities []dao.UserActivity) {
	bold := color.New(color.Bold)
	bold.Printf("%-12s %-16s %-16s %12s\n", "DAY", "PRODUCT", "USER", "SPENT")

	var total float64
	for _, a := range activities {
		total += a.MoneySpent
		fmt.Printf("%-12s %-16s %-16s %12s  (%s)\n",
			a.Day.Format(dayLayout),
			a.PID,
			a.UID,
			humanize.CommafWithDigits(a.MoneySpent, 2),
			humanize.Time(a.Day),
		)
	}
	bold.Printf("%s activities, %s spent\n",
		humanize.Comma(int64(len(activities))),
		humanize.CommafWithDigits(total, 2),
	)
}

type initSchemaCommand struct {
	g *globals
}

func (cmd *initSchemaCommand) run(_ *kingpin.ParseContext) error {
	ctx := context.Background()
	s, err := cmd.g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.session.CreateTable(ctx, userActivitySchema); err != nil {
		return err
	}
	tables, err := s.session.ListTables(ctx)
	if err != nil {
		return err
	}
	color.Green("table %s ready, keyspace has %d table(s)", userActivitySchema.Name, len(tables))
	return nil
}

func addInitSchemaCommand(app *kingpin.Application, g *globals) {
	cmd := &initSchemaCommand{g: g}
	app.Command("init-schema", "Create the keyspace and the user activity table if missing.").Action(cmd.run)
}
