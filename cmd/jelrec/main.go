/*
Jelrec performs administrative operations against record storage hosts
configured in a jelrec config file.

Usage:

	jelrec [flags] COMMAND [ARGS...]

The commands are:

  - table-create - create the table for the schema given with -s
  - table-drop - drop the table for the schema given with -s
  - db-create - create the database named in the first argument
  - db-drop - drop the database named in the first argument
  - changes - print the change log of the record whose key is the first
    argument, for the schema given with -s
  - uuid - generate and print a UUID from the schema's host

The flags are:

	-c, --conf PATH
		Use the given file for the configuration instead of './jelrec.yml'.
		The file must be in JSON or YAML format.
	-s, --schema PATH
		Load the record schema from the given JSON file. Required for all
		commands except db-create and db-drop.
	-H, --host NAME
		Use the named host for db-create and db-drop instead of 'primary'.
	-e, --if-exists
		Make table-create tolerate an already existing table.
	-d, --desc
		Print changes newest first instead of oldest first.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dekarrin/jelrec"
	"github.com/dekarrin/jelrec/config"
	"github.com/dekarrin/jelrec/internal/sortby"
	"github.com/dekarrin/jelrec/schema"
	"github.com/spf13/pflag"
)

const (
	exitSuccess   = 0
	exitError     = 1
	exitPanic     = 2
	exitInterrupt = 3
)

var exitCode int

var (
	flagConf     = pflag.StringP("conf", "c", "jelrec.yml", "Path to configuration file")
	flagSchema   = pflag.StringP("schema", "s", "", "Path to record schema file")
	flagHost     = pflag.StringP("host", "H", "primary", "Host to use for database commands")
	flagIfExists = pflag.BoolP("if-exists", "e", false, "Tolerate already-existing or missing targets")
	flagDesc     = pflag.BoolP("desc", "d", false, "Print changes newest first")
)

func main() {
	ctx, cancelMainContext := context.WithCancel(context.Background())
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	defer func() {
		signal.Stop(signalChan)
		cancelMainContext()
	}()
	go func() {
		select {
		case <-signalChan:
			cancelMainContext()
		case <-ctx.Done():
		}

		<-signalChan // second signal, hard exit
		os.Exit(exitInterrupt)
	}()

	defer func() {
		if panicErr := recover(); panicErr != nil {
			fmt.Fprintf(os.Stderr, "fatal panic: %v\n", panicErr)
			exitCode = exitPanic
		}
		os.Exit(exitCode)
	}()

	pflag.Parse()

	if pflag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "ERROR: missing command; try one of table-create, table-drop, db-create, db-drop, changes, uuid\n")
		exitCode = exitError
		return
	}
	command := pflag.Arg(0)

	b, err := config.Load(*flagConf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		exitCode = exitError
		return
	}
	b = b.FillDefaults()
	if err := b.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s: %s\n", *flagConf, err.Error())
		exitCode = exitError
		return
	}

	reg, err := b.Registry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		exitCode = exitError
		return
	}
	defer func() {
		if err := reg.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
			if exitCode == exitSuccess {
				exitCode = exitError
			}
		}
	}()

	switch command {
	case "table-create", "table-drop", "changes", "uuid":
		err = runTableCommand(ctx, reg, command)
	case "db-create", "db-drop":
		err = runDBCommand(ctx, reg, command)
	default:
		err = fmt.Errorf("unknown command %q", command)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		exitCode = exitError
	}
}

func runTableCommand(ctx context.Context, reg *jelrec.Registry, command string) error {
	if *flagSchema == "" {
		return fmt.Errorf("%s requires a schema file; give one with -s", command)
	}

	tree, err := schema.Load(*flagSchema)
	if err != nil {
		return fmt.Errorf("%q: %w", *flagSchema, err)
	}
	st, err := jelrec.NewStruct(tree)
	if err != nil {
		return fmt.Errorf("%q: %w", *flagSchema, err)
	}
	tbl := jelrec.NewTable(reg, st)

	switch command {
	case "table-create":
		return tbl.TableCreate(ctx, *flagIfExists)
	case "table-drop":
		return tbl.TableDrop(ctx)
	case "uuid":
		id, err := tbl.GenerateUUID(ctx)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	case "changes":
		if pflag.NArg() < 2 {
			return fmt.Errorf("changes requires a record key argument")
		}
		changes, err := tbl.GetChanges(ctx, pflag.Arg(1), *flagDesc)
		if err != nil {
			return err
		}
		for _, ch := range changes {
			fmt.Printf("%s:", ch.Created.Format("2006-01-02 15:04:05"))
			for _, f := range sortedItemKeys(ch.Items) {
				fmt.Printf(" %s=%v", f, ch.Items[f])
			}
			fmt.Println()
		}
		return nil
	}

	return fmt.Errorf("unknown command %q", command)
}

func runDBCommand(ctx context.Context, reg *jelrec.Registry, command string) error {
	if pflag.NArg() < 2 {
		return fmt.Errorf("%s requires a database name argument", command)
	}
	name := reg.DBName(pflag.Arg(1))

	be, err := reg.Backend(*flagHost)
	if err != nil {
		return err
	}

	switch command {
	case "db-create":
		return be.DBCreate(ctx, name)
	case "db-drop":
		return be.DBDrop(ctx, name)
	}

	return fmt.Errorf("unknown command %q", command)
}

func sortedItemKeys(items map[string]any) []string {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return sortby.Strings(keys)
}
