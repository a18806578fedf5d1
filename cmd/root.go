// Package cmd holds the cobra commands of the bnb binary.
package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/grovetools/bnb/cli"
	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/pkg/marketplace"
	"github.com/grovetools/bnb/pkg/models"
)

// NewRootCmd assembles the bnb command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand("bnb", "Browse, book and host short-term rentals")
	root.Long = `Browse, book and host short-term rentals from the terminal.

bnb talks to a marketplace REST API (api.base_url in bnb.yml, or BNB_API_URL)
and keeps the signed-in session in the configured storage backend.

Examples:
# sign in and look around
bnb login --email guest@bnb.test
bnb listings list --location Berlin --max-price 100
bnb bookings book 4 --check-in 2026-11-02 --check-out 2026-11-05`

	root.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newListingsCmd(),
		newBookingsCmd(),
		newFavoritesCmd(),
		newReviewsCmd(),
		newAdminCmd(),
		newHostCmd(),
		newDashboardCmd(),
		newConfigCmd(),
		newPathsCmd(),
		newServeFakeCmd(),
		cli.NewVersionCommand("bnb"),
	)
	cli.ApplyStyledHelpRecursive(root)
	return root
}

// withClient loads the configuration, builds a client and runs fn with it.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *marketplace.Client) error) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	c, err := marketplace.New(cfg, marketplace.WithLogger(cli.GetLogger(cmd)))
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, c)
}

// render prints v as JSON with --json, and the table otherwise.
func render(cmd *cobra.Command, v any, table func() string) error {
	out := cmd.OutOrStdout()
	if cli.GetOptions(cmd).JSONOutput {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.Wrap(err, errors.KindInternal, "failed to encode output")
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprintln(out, table())
	return nil
}

// done prints a confirmation, or {"message": msg} with --json.
func done(cmd *cobra.Command, msg string) error {
	return render(cmd, models.Message{Message: msg}, func() string {
		return cli.DefaultTheme.Success.Render("✓ ") + msg
	})
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.InvalidInput(fmt.Sprintf("%s must be a positive number, got %q", what, arg))
	}
	return id, nil
}

func parseDateFlag(cmd *cobra.Command, name string) (models.Date, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return models.Date{}, errors.InvalidInput(fmt.Sprintf("--%s is required (YYYY-MM-DD)", name))
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, errors.Wrap(err, errors.KindInvalidInput, fmt.Sprintf("--%s must be YYYY-MM-DD", name))
	}
	return d, nil
}

// prompter reads answers from the command's input. Secret values are read
// without echo when the input is a terminal.
type prompter struct {
	cmd *cobra.Command
	r   *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{cmd: cmd, r: bufio.NewReader(cmd.InOrStdin())}
}

func (p *prompter) ask(label string, secret bool) (string, error) {
	errOut := p.cmd.ErrOrStderr()
	fmt.Fprint(errOut, label+": ")

	if f, ok := p.cmd.InOrStdin().(*os.File); ok && secret && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(errOut)
		if err != nil {
			return "", errors.Wrap(err, errors.KindInvalidInput, "failed to read "+strings.ToLower(label))
		}
		return string(b), nil
	}

	line, err := p.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errors.Wrap(err, errors.KindInvalidInput, "failed to read "+strings.ToLower(label))
	}
	return strings.TrimSpace(line), nil
}

// flagOrAsk returns the named string flag, prompting when it is empty.
func (p *prompter) flagOrAsk(name, label string, secret bool) (string, error) {
	if v, _ := p.cmd.Flags().GetString(name); v != "" {
		return v, nil
	}
	return p.ask(label, secret)
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
