package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/michaelhelvey/crabbot/internal/interactions"
)

const usage = `Usage:
  go run ./cmd/keygen                          generate a key pair
  go run ./cmd/keygen sign -key <hex> <body>   sign a request body

The public key goes in DISCORD_PUBLIC_KEY. Signed output can be replayed
against a local server with curl.`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return generate(out, rand.Reader)
	}
	switch args[0] {
	case "sign":
		return sign(args[1:], out, time.Now)
	case "-h", "-help", "--help", "help":
		fmt.Fprintln(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func generate(out io.Writer, random io.Reader) error {
	pub, priv, err := ed25519.GenerateKey(random)
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}

	fmt.Fprintf(out, "Public Key:  %s\n", hex.EncodeToString(pub))
	fmt.Fprintf(out, "Private Key: %s\n", hex.EncodeToString(priv.Seed()))
	fmt.Fprintln(out, "\nAdd this to your .env:")
	fmt.Fprintf(out, "  DISCORD_PUBLIC_KEY=%s\n", hex.EncodeToString(pub))
	return nil
}

func sign(args []string, out io.Writer, now func() time.Time) error {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(out)
	seedHex := fs.String("key", "", "hex encoded 32 byte private key seed")
	timestamp := fs.String("timestamp", "", "signature timestamp (default: current unix time)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("sign: expected exactly one body argument")
	}

	var seed [ed25519.SeedSize]byte
	if !interactions.DecodeHex(seed[:], *seedHex) {
		return fmt.Errorf("sign: -key must be a %d digit hex string", 2*ed25519.SeedSize)
	}
	if *timestamp == "" {
		*timestamp = strconv.FormatInt(now().Unix(), 10)
	}

	body := fs.Arg(0)
	priv := ed25519.NewKeyFromSeed(seed[:])
	sig := ed25519.Sign(priv, []byte(*timestamp+body))

	fmt.Fprintf(out, "%s: %s\n", interactions.TimestampHeader, *timestamp)
	fmt.Fprintf(out, "%s: %s\n", interactions.SignatureHeader, interactions.EncodeHex(sig))
	return nil
}
