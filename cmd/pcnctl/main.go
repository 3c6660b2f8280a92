package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"pcnchain/cmd/internal/passphrase"
	"pcnchain/crypto"
	"pcnchain/native/channels"
)

const (
	defaultPassEnv  = "PCN_KEY_PASS"
	defaultKeystore = "participant.keystore"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	if err := dispatch(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(command string, args []string, out io.Writer) error {
	switch command {
	case "keygen":
		return runKeygen(args, out)
	case "address":
		return runAddress(args, out)
	case "sign-proof":
		return runSignProof(args, out)
	case "sign-close":
		return runSignClose(args, out)
	case "hashlock":
		return runHashlock(args, out)
	default:
		usage(out)
		return fmt.Errorf("unknown command %q", command)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: pcnctl <command> [flags]")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  keygen      generate a participant key and write it to a keystore")
	fmt.Fprintln(w, "  address     print the address stored in a keystore")
	fmt.Fprintln(w, "  sign-proof  sign a proof of your own balance for the counterparty to submit")
	fmt.Fprintln(w, "  sign-close  sign a cooperative close")
	fmt.Fprintln(w, "  hashlock    print the hashlock of a preimage")
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	keystorePath := fs.String("keystore", defaultKeystore, "Output path for the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*force {
		if _, err := os.Stat(*keystorePath); err == nil {
			return fmt.Errorf("keystore %s already exists (use -force to overwrite)", *keystorePath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	pass, err := passphrase.NewSource(*passEnv).Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*keystorePath, key, pass); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	fmt.Fprintf(out, "%s\n", key.Address().String())
	return nil
}

func runAddress(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	keystorePath := fs.String("keystore", defaultKeystore, "Path to the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := loadKey(*keystorePath, *passEnv)
	if err != nil {
		return err
	}
	addr := key.Address()
	fmt.Fprintf(out, "%s %s\n", addr.String(), addr.Hex())
	return nil
}

// runSignProof signs an attestation of the keystore owner's own balance.
// The counterparty submits it on chain.
func runSignProof(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sign-proof", flag.ContinueOnError)
	keystorePath := fs.String("keystore", defaultKeystore, "Path to the signer's keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	channelID := fs.Uint64("channel", 0, "Channel id")
	participant := fs.String("participant", "", "Expected signer address; defaults to the keystore address")
	balance := fs.String("balance", "", "Signer's attested balance (base-10)")
	nonce := fs.Uint64("nonce", 0, "Proof nonce; must exceed the last accepted nonce")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *channelID == 0 {
		return errors.New("channel id required")
	}
	amount, err := parseAmount(*balance)
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	key, err := loadKey(*keystorePath, *passEnv)
	if err != nil {
		return err
	}
	addr := key.Address()
	if *participant != "" {
		expected, err := crypto.ParseAddress(*participant)
		if err != nil {
			return fmt.Errorf("participant: %w", err)
		}
		if expected != addr {
			return fmt.Errorf("participant %s does not match keystore address %s", expected, addr)
		}
	}
	sig, err := key.Sign(channels.BalanceProofMessage(*channelID, addr, amount, *nonce))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "0x%s\n", hex.EncodeToString(sig))
	return nil
}

func runSignClose(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sign-close", flag.ContinueOnError)
	keystorePath := fs.String("keystore", defaultKeystore, "Path to the signer's keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	channelID := fs.Uint64("channel", 0, "Channel id")
	balance1 := fs.String("balance1", "", "Final balance of participant 1 (base-10)")
	balance2 := fs.String("balance2", "", "Final balance of participant 2 (base-10)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *channelID == 0 {
		return errors.New("channel id required")
	}
	b1, err := parseAmount(*balance1)
	if err != nil {
		return fmt.Errorf("balance1: %w", err)
	}
	b2, err := parseAmount(*balance2)
	if err != nil {
		return fmt.Errorf("balance2: %w", err)
	}
	key, err := loadKey(*keystorePath, *passEnv)
	if err != nil {
		return err
	}
	sig, err := key.Sign(channels.CloseMessage(*channelID, b1, b2))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "0x%s\n", hex.EncodeToString(sig))
	return nil
}

func runHashlock(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("hashlock", flag.ContinueOnError)
	preimage := fs.String("preimage", "", "Preimage as 0x-prefixed hex or plain text")
	algorithm := fs.String("hash", crypto.HashKeccak256, "Hash algorithm (keccak256 or blake3)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *preimage == "" {
		return errors.New("preimage required")
	}
	hasher, err := crypto.HasherByName(*algorithm)
	if err != nil {
		return err
	}
	raw := []byte(*preimage)
	if strings.HasPrefix(*preimage, "0x") {
		if raw, err = hex.DecodeString(strings.TrimPrefix(*preimage, "0x")); err != nil {
			return fmt.Errorf("preimage: %w", err)
		}
	}
	sum := hasher.Sum(raw)
	fmt.Fprintf(out, "0x%s\n", hex.EncodeToString(sum[:]))
	return nil
}

func loadKey(path, passEnv string) (*crypto.PrivateKey, error) {
	pass, err := passphrase.NewSource(passEnv).Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("load keystore: %w", err)
	}
	return key, nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, errors.New("amount must not be negative")
	}
	return amount, nil
}
