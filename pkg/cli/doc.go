/*
Package cli provides command-line helpers shared by the gatekeeper command.

Output Formatting:

Commands render results as text, JSON, or CSV. Results that implement Table
are printed as aligned columns in text mode and as rows in CSV mode:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Exit Codes:

ExitCode maps a command error to the process exit status. A decision that is
not approved exits with ExitNotApproved so shell scripts can gate on it.

Progress Reporting:

Progress keeps one status line on stderr while a batch job walks its records:

	progress := cli.NewProgress(os.Stderr, "verify")
	progress.Start(total)
	progress.Advance(int64(len(batch)), flagged)
	progress.Done()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
