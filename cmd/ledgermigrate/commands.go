package main

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"code.cloudfoundry.org/lager/v3"

	migrator "github.com/aatuh/ledgermigrator"
)

type UpCommand struct {
	global *GlobalOptions

	MaxSteps *int `long:"max-steps" description:"Apply at most this many migrations"`
}

func (cmd UpCommand) Execute([]string) error {
	return runMigrations(cmd.global, migrator.DirectionUp, cmd.MaxSteps)
}

type DownCommand struct {
	global *GlobalOptions

	MaxSteps *int `long:"max-steps" description:"Roll back at most this many migrations"`
}

func (cmd DownCommand) Execute([]string) error {
	return runMigrations(cmd.global, migrator.DirectionDown, cmd.MaxSteps)
}

func runMigrations(global *GlobalOptions, direction migrator.Direction, maxSteps *int) error {
	ctx := context.Background()

	env, err := global.open(ctx, "migrate-"+string(direction))
	if err != nil {
		return err
	}
	defer env.close()

	opts := migrator.NewMigrateOptions()
	if maxSteps != nil {
		opts = opts.WithMaxSteps(*maxSteps)
	}

	env.logger.Info(starting)
	res, err := env.migrator.Migrate(ctx, direction, opts)
	if err != nil {
		env.logger.Error(failedToRunMigrations, err)
		return err
	}
	env.logger.Info(finished, lager.Data{"versions": res.Versions})

	for _, v := range res.Versions {
		fmt.Fprintf(env.out, "%s %03d\n", direction, v)
	}
	fmt.Fprintf(env.out, "version %d\n", res.FinalVersion)
	return nil
}

type VersionCommand struct {
	global *GlobalOptions
}

func (cmd VersionCommand) Execute([]string) error {
	ctx := context.Background()

	env, err := cmd.global.open(ctx, "version")
	if err != nil {
		return err
	}
	defer env.close()

	version, err := env.migrator.CurrentVersion(ctx)
	if err != nil {
		env.logger.Error(failedToReadLedger, err)
		return err
	}
	fmt.Fprintln(env.out, version)
	return nil
}

type ListCommand struct {
	global *GlobalOptions
}

func (cmd ListCommand) Execute([]string) error {
	ctx := context.Background()

	env, err := cmd.global.open(ctx, "list")
	if err != nil {
		return err
	}
	defer env.close()

	res, err := env.migrator.Validate(ctx)
	if err != nil {
		env.logger.Error(failedToReadLedger, err)
		return err
	}

	for _, mig := range env.migrator.AvailableMigrations() {
		state := "applied"
		if slices.Contains(res.Pending, mig.Version()) {
			state = "pending"
		}
		fmt.Fprintf(env.out, "%s\t%s\n", mig, state)
	}
	return nil
}

type PendingCommand struct {
	global *GlobalOptions
}

func (cmd PendingCommand) Execute([]string) error {
	ctx := context.Background()

	env, err := cmd.global.open(ctx, "pending")
	if err != nil {
		return err
	}
	defer env.close()

	pending, err := env.migrator.PendingMigrations(ctx)
	if err != nil {
		env.logger.Error(failedToReadLedger, err)
		return err
	}
	for _, mig := range pending {
		fmt.Fprintln(env.out, mig)
	}
	return nil
}

type ValidateCommand struct {
	global *GlobalOptions
}

var errLedgerMismatch = errors.New("ledger does not match the migrations")

func (cmd ValidateCommand) Execute([]string) error {
	ctx := context.Background()

	env, err := cmd.global.open(ctx, "validate")
	if err != nil {
		return err
	}
	defer env.close()

	res, err := env.migrator.Validate(ctx)
	if err != nil {
		env.logger.Error(failedToReadLedger, err)
		return err
	}

	for _, msg := range res.Messages {
		fmt.Fprintln(env.out, msg)
	}
	if !res.OK {
		env.logger.Error(ledgerDoesNotMatchCatalog, errLedgerMismatch, lager.Data{
			"unknown": res.Unknown,
			"renamed": res.Renamed,
		})
		return errLedgerMismatch
	}
	fmt.Fprintf(env.out, "ok, %d pending\n", len(res.Pending))
	return nil
}
