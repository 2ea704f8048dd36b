// guardianctl manages a guardian key and drives the guardian approval gate.
//
// Usage:
//
//	guardianctl [global flags] <command> [flags]
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Klingon-tech/klingnet-guardian/config"
	"github.com/Klingon-tech/klingnet-guardian/internal/node"
	"github.com/Klingon-tech/klingnet-guardian/internal/prover"
	"github.com/Klingon-tech/klingnet-guardian/internal/storage"
	"github.com/Klingon-tech/klingnet-guardian/pkg/crypto"
)

const version = "0.1.0"

func main() {
	flags, err := config.Parse("guardianctl", os.Args[1:], os.Stderr)
	if errors.Is(err, config.ErrHelp) {
		usage()
		os.Exit(0)
	}
	if err != nil {
		fatal("%v", err)
	}
	if flags.Version {
		fmt.Printf("guardianctl version %s\n", version)
		return
	}
	if flags.Help || len(flags.Args) == 0 {
		usage()
		if flags.Help {
			return
		}
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fatal("%v", err)
	}

	cmd := flags.Args[0]
	cmdArgs := flags.Args[1:]

	switch cmd {
	case "keygen":
		cmdKeygen(cfg, cmdArgs)
	case "address":
		cmdAddress(cfg, cmdArgs)
	case "fingerprint":
		cmdFingerprint(cmdArgs)
	case "sign":
		cmdSign(cfg, cmdArgs)
	case "order":
		cmdOrder(cmdArgs)
	case "attest":
		cmdAttest(cfg, cmdArgs)
	case "submit":
		cmdSubmit(cfg, cmdArgs)
	case "status":
		cmdStatus(cfg, cmdArgs)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: guardianctl [global flags] <command> [flags]

Commands:
  keygen      [--out <path>]                       Create a guardian key
  address     [--key <path>]                       Print a key's address
  fingerprint --proposal <file> [--bulk]           Print a proposal fingerprint
  sign        [--key <path>] --proposal <file>     Sign the bulk fingerprint
  order       --proposal <file> <sig>...           Sort signatures by signer
  attest      [--key <path>] --proposal <file>     Approve through the incremental path
  submit      --proposal <file> <sig>...           Approve with a signature bundle
  status      --proposal <file>                    Show pending approvals and proof

The proposal file is JSON: {"proposal": {"meta": {...}, "transition": {...}},
"proof": {"tier": 1000, "data": "<hex>"}}. Signatures are 65-byte hex.

%s`, config.Usage)
}

// keyPath picks the key file: the command flag, then the config, then the
// default keystore location.
func keyPath(cfg *config.Config, flagValue string) string {
	switch {
	case flagValue != "":
		return flagValue
	case cfg.Guardian.KeyFile != "":
		return cfg.Guardian.KeyFile
	default:
		return cfg.DefaultKeyFile()
	}
}

func loadKey(cfg *config.Config, flagValue string) *crypto.PrivateKey {
	path := keyPath(cfg, flagValue)
	key, err := node.LoadGuardianKey(path)
	if err != nil {
		fatal("load key %s: %v", path, err)
	}
	return key
}

func mustRequest(path string) *request {
	if path == "" {
		fatal("--proposal is required")
	}
	req, err := loadRequest(path)
	if err != nil {
		fatal("%v", err)
	}
	return req
}

func cmdKeygen(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	out := fs.String("out", "", "Key file path (default: <datadir>/<network>/keystore/guardian.key)")
	fs.Parse(args)

	path := *out
	if path == "" {
		path = cfg.DefaultKeyFile()
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		fatal("generate key: %v", err)
	}
	defer key.Zero()

	if err := node.SaveGuardianKey(path, key); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Key file: %s\n", path)
	fmt.Printf("Address:  %s\n", key.Address())
}

func cmdAddress(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("address", flag.ExitOnError)
	keyFile := fs.String("key", "", "Key file path")
	fs.Parse(args)

	key := loadKey(cfg, *keyFile)
	defer key.Zero()
	fmt.Println(key.Address())
}

func cmdFingerprint(args []string) {
	fs := flag.NewFlagSet("fingerprint", flag.ExitOnError)
	file := fs.String("proposal", "", "Proposal JSON file")
	bulk := fs.Bool("bulk", false, "Use the bulk (signature bundle) fingerprint")
	fs.Parse(args)

	req := mustRequest(*file)
	tag := prover.TagNone
	if *bulk {
		tag = prover.TagApprove
	}
	fmt.Println(prover.Bind(req.Proposal, tag))
}

func cmdSign(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	keyFile := fs.String("key", "", "Key file path")
	file := fs.String("proposal", "", "Proposal JSON file")
	fs.Parse(args)

	req := mustRequest(*file)
	key := loadKey(cfg, *keyFile)
	defer key.Zero()

	fp := prover.Bind(req.Proposal, prover.TagApprove)
	sig, err := key.Sign(fp[:])
	if err != nil {
		fatal("sign: %v", err)
	}
	fmt.Printf("Signer:    %s\n", key.Address())
	fmt.Printf("Signature: %s\n", hex.EncodeToString(sig))
}

func cmdOrder(args []string) {
	fs := flag.NewFlagSet("order", flag.ExitOnError)
	file := fs.String("proposal", "", "Proposal JSON file")
	fs.Parse(args)

	req := mustRequest(*file)
	sigs, err := parseSignatures(fs.Args())
	if err != nil {
		fatal("%v", err)
	}

	ordered, signers, err := prover.OrderSignatures(prover.Bind(req.Proposal, prover.TagApprove), sigs)
	if err != nil {
		fatal("%v", err)
	}
	if !prover.SignersOrdered(signers) {
		fatal("signature set has a repeated signer")
	}
	for i, sig := range ordered {
		fmt.Printf("%s  # %s\n", hex.EncodeToString(sig), signers[i])
	}
}

func cmdAttest(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("attest", flag.ExitOnError)
	keyFile := fs.String("key", "", "Key file path")
	file := fs.String("proposal", "", "Proposal JSON file")
	fs.Parse(args)

	req := mustRequest(*file)
	cfg.Guardian.KeyFile = keyPath(cfg, *keyFile)
	if err := attest(cfg, req, os.Stdout); err != nil {
		fatal("attest: %v", err)
	}
}

func cmdSubmit(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	file := fs.String("proposal", "", "Proposal JSON file")
	fs.Parse(args)

	req := mustRequest(*file)
	sigs, err := parseSignatures(fs.Args())
	if err != nil {
		fatal("%v", err)
	}
	if err := submit(cfg, req, sigs, os.Stdout); err != nil {
		fatal("submit: %v", err)
	}
}

func cmdStatus(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	file := fs.String("proposal", "", "Proposal JSON file")
	fs.Parse(args)

	req := mustRequest(*file)
	if err := status(cfg, req, os.Stdout); err != nil {
		fatal("%v", err)
	}
}

// The node-backed commands return errors instead of exiting so that the
// deferred Close releases the database before the process ends.

func attest(cfg *config.Config, req *request, w io.Writer) error {
	n, err := node.New(cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	approved, err := n.Attest(context.Background(), req.Proposal, req.Proof)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Block:    %d\n", req.Proposal.Meta.BlockID)
	fmt.Fprintf(w, "Guardian: %s\n", n.GuardianKey().Address())
	fmt.Fprintf(w, "Approved: %v\n", approved)
	return nil
}

func submit(cfg *config.Config, req *request, sigs [][]byte, w io.Writer) error {
	n, err := node.New(cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	if err := n.Submit(context.Background(), req.Proposal, req.Proof, sigs); err != nil {
		return err
	}
	fmt.Fprintf(w, "Block %d approved and dispatched\n", req.Proposal.Meta.BlockID)
	return nil
}

func status(cfg *config.Config, req *request, w io.Writer) error {
	n, err := node.New(cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	p := req.Proposal
	pending, err := n.PendingApprovals(p)
	if err != nil {
		return fmt.Errorf("approvals: %w", err)
	}

	fmt.Fprintf(w, "Block:        %d\n", p.Meta.BlockID)
	fmt.Fprintf(w, "Fingerprint:  %s\n", prover.Bind(p, prover.TagNone))
	fmt.Fprintf(w, "Approvals:    %d/%d\n", len(pending), n.Set().MinGuardians())
	for _, addr := range pending {
		fmt.Fprintf(w, "  %s\n", addr)
	}

	rec, err := n.ProvenBlock(p.Meta.BlockID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Fprintln(w, "Proven:       no")
	case err != nil:
		return fmt.Errorf("proven block: %w", err)
	default:
		fmt.Fprintf(w, "Proven:       yes (state %s, tier %d)\n", rec.StateHash, rec.Proof.Tier)
	}
	return nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
