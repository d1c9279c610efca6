// Package main recomputes round outcomes from a revealed secret seed so a
// player can check a settled round without trusting the server.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"fairplay-backend/internal/fairness"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	seed       string
	hash       string
	clientSeed string
	nonce      uint64
	draws      uint64
	min        int
	max        int
	ranged     bool
	outcome    float64
	value      int
}

func run(args []string, out io.Writer) error {
	var opts options
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.seed, "seed", "", "revealed secret seed (hex)")
	fs.StringVar(&opts.hash, "hash", "", "commitment published before play")
	fs.StringVar(&opts.clientSeed, "client-seed", "", "client seed of the round")
	fs.Uint64Var(&opts.nonce, "nonce", 0, "first nonce to derive")
	fs.Uint64Var(&opts.draws, "draws", 1, "number of consecutive nonces to derive")
	fs.IntVar(&opts.min, "min", 0, "lower bound of a ranged draw")
	fs.IntVar(&opts.max, "max", 0, "upper bound of a ranged draw")
	fs.Float64Var(&opts.outcome, "outcome", -1, "claimed [0,1) outcome at -nonce")
	fs.IntVar(&opts.value, "value", 0, "claimed ranged value at -nonce")
	if err := fs.Parse(args); err != nil {
		return err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["min"] != set["max"] {
		return errors.New("-min and -max must be given together")
	}
	opts.ranged = set["min"]
	if opts.ranged && opts.min > opts.max {
		return fmt.Errorf("empty range [%d,%d]", opts.min, opts.max)
	}
	if set["value"] && !opts.ranged {
		return errors.New("-value needs -min and -max")
	}
	if opts.draws == 0 {
		return errors.New("-draws must be at least 1")
	}

	secret, err := fairness.DecodeSeed(opts.seed)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "secret_seed_hash: %s\n", fairness.HashSeed(secret))
	if opts.hash != "" {
		fmt.Fprintf(out, "commitment_valid: %t\n", fairness.VerifyCommitment(secret, opts.hash))
	}

	for i := uint64(0); i < opts.draws; i++ {
		nonce := opts.nonce + i
		line := fmt.Sprintf("nonce %d: outcome=%v", nonce, fairness.Derive(secret, opts.clientSeed, nonce))
		if opts.ranged {
			line += fmt.Sprintf(" value=%d", fairness.DeriveInRange(secret, opts.clientSeed, nonce, opts.min, opts.max))
		}
		fmt.Fprintln(out, line)
	}

	if set["outcome"] {
		fmt.Fprintf(out, "outcome_valid: %t\n", fairness.Verify(secret, opts.clientSeed, opts.nonce, opts.outcome))
	}
	if set["value"] {
		fmt.Fprintf(out, "value_valid: %t\n", fairness.VerifyInRange(secret, opts.clientSeed, opts.nonce, opts.min, opts.max, opts.value))
	}
	return nil
}
