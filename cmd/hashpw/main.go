// Command hashpw prompts for a password without echo, checks it against the
// password policy and prints its bcrypt digest, e.g. for seeding accounts.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/dmitrijs2005/dumpvault/internal/common"
	"github.com/dmitrijs2005/dumpvault/internal/server/password"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errMismatch = errors.New("passwords do not match")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("hashpw", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cost := fs.Int("cost", password.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := prompt(stderr, "Enter password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	confirm, err := prompt(stderr, "Confirm password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(pw, confirm) {
		return errMismatch
	}

	if res := password.Validate(string(pw)); !res.Valid {
		for _, m := range res.Messages() {
			fmt.Fprintln(stderr, m)
		}
		return errors.New("password rejected by policy")
	}

	digest, err := password.NewHasher(*cost, 1).Hash(ctx, string(pw))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, digest)
	return err
}

func prompt(w io.Writer, text string) ([]byte, error) {
	if _, err := fmt.Fprint(w, text); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}
