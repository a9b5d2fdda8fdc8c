package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/keyfort/keyfort/auth"
	"github.com/keyfort/keyfort/internal/session"
	"github.com/keyfort/keyfort/internal/vault"
	"github.com/keyfort/keyfort/recovery"
	"github.com/keyfort/keyfort/store"
)

const cliVersion = "0.1.0"

type userError struct {
	msg string
}

func (e userError) Error() string { return e.msg }

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Println(cliVersion)
	case "setup":
		if err := runSetup(os.Args[2:]); err != nil {
			handleError(err)
		}
	case "session":
		if err := runSession(os.Args[2:]); err != nil {
			handleError(err)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage:
  keyfort setup   --dir <vault-dir> [--db <sqlite-file>] [--advisor-url <url>]
  keyfort session --dir <vault-dir> [--db <sqlite-file>]
  keyfort version`)
}

func handleError(err error) {
	if err == nil {
		return
	}

	var uerr userError
	if errors.As(err, &uerr) {
		fmt.Fprintln(os.Stderr, uerr.Error())
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "unexpected error: %v\n", err)
	os.Exit(2)
}

type storeFlags struct {
	dir string
	db  string
}

func (f *storeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.dir, "dir", "", "vault directory (file-per-record store)")
	fs.StringVar(&f.db, "db", "", "sqlite database file (overrides --dir)")
}

func (f *storeFlags) open() (store.Store, func(), error) {
	if f.db != "" {
		st, err := store.OpenSQLite(f.db)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	}
	if f.dir == "" {
		return nil, nil, userError{msg: "missing required flag: --dir or --db"}
	}
	st, err := store.NewFileStore(f.dir)
	if err != nil {
		return nil, nil, err
	}
	return st, func() {}, nil
}

func runSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var sf storeFlags
	sf.register(fs)
	var advisorURL string
	fs.StringVar(&advisorURL, "advisor-url", "", "optional strength advisor endpoint")

	if err := fs.Parse(args); err != nil {
		return userError{msg: "invalid arguments"}
	}
	if fs.NArg() != 0 {
		return userError{msg: "unexpected positional arguments"}
	}

	st, closeStore, err := sf.open()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()
	sess := session.New(st)
	defer sess.Close()

	if err := sess.Load(ctx); err != nil {
		return err
	}
	if sess.State() != session.StateUninitialized {
		return userError{msg: "vault already set up; use `keyfort session` to unlock"}
	}

	pw, err := promptPassword("Choose master password: ")
	if err != nil {
		return fmt.Errorf("read master password: %w", err)
	}
	defer zeroBytes(pw)

	var advisor auth.Advisor
	if advisorURL != "" {
		advisor = &auth.HTTPAdvisor{URL: advisorURL}
	}
	advice := auth.Evaluate(ctx, string(pw), advisor)
	fmt.Printf("strength: %d/100 (%s)\n", advice.Score, advice.Level)
	for _, f := range advice.Feedback {
		fmt.Printf("  - %s\n", f)
	}

	confirm, err := promptPassword("Confirm master password: ")
	if err != nil {
		return fmt.Errorf("read confirmation password: %w", err)
	}
	defer zeroBytes(confirm)

	if !bytes.Equal(pw, confirm) {
		return userError{msg: "passwords do not match"}
	}

	code, err := recovery.GenerateCode()
	if err != nil {
		return err
	}

	fmt.Println("Setting up vault (this takes a moment)...")
	if err := sess.Setup(ctx, string(pw), code); err != nil {
		return err
	}

	fmt.Println("Vault created. Write down your recovery code and store it safely:")
	fmt.Println()
	fmt.Println("  " + code)
	fmt.Println()
	fmt.Println("It is the only other way to unlock this vault.")
	return nil
}

func runSession(args []string) error {
	fs := flag.NewFlagSet("session", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var sf storeFlags
	sf.register(fs)

	if err := fs.Parse(args); err != nil {
		return userError{msg: "invalid arguments"}
	}
	if fs.NArg() != 0 {
		return userError{msg: "unexpected positional arguments"}
	}

	st, closeStore, err := sf.open()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()
	sess := session.New(st)
	defer sess.Close()

	if err := sess.Load(ctx); err != nil {
		return err
	}
	if sess.State() == session.StateUninitialized {
		return userError{msg: "no vault found; run `keyfort setup` first"}
	}

	if err := unlock(ctx, sess); err != nil {
		return err
	}

	fmt.Println("Vault unlocked. Type `help` for commands.")
	return repl(ctx, sess)
}

func unlock(ctx context.Context, sess *session.Session) error {
	for {
		secret, err := promptPassword("Master password or recovery code: ")
		if err != nil {
			return fmt.Errorf("read secret: %w", err)
		}

		err = sess.Authenticate(ctx, string(secret))
		zeroBytes(secret)
		if err == nil {
			return nil
		}

		var lockErr *session.LockoutError
		switch {
		case errors.As(err, &lockErr):
			return userError{msg: lockErr.Error()}
		case errors.Is(err, session.ErrWrongSecret):
			fmt.Fprintln(os.Stderr, "invalid credential, try again")
		case errors.Is(err, session.ErrCorruptedStore):
			return userError{msg: "vault data is corrupted; export what you can and re-run setup"}
		default:
			return err
		}
	}
}

func repl(ctx context.Context, sess *session.Session) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("keyfort> ")
		if !scanner.Scan() {
			sess.Lock()
			return scanner.Err()
		}
		sess.Touch()

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "help":
			fmt.Println("commands: list, add <site> <user>, show <id>, remove <id>, rotate-recovery, change-master, lock, quit")
		case "list":
			entries, err := sess.Entries()
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s  %-20s %s\n", e.ID, e.Site, e.Username)
			}
		case "add":
			if len(fields) != 3 {
				fmt.Fprintln(os.Stderr, "usage: add <site> <user>")
				continue
			}
			pw, err := promptPassword("Password for entry: ")
			if err != nil {
				return err
			}
			entry := vault.NewEntry(fields[1], fields[2], string(pw), "login")
			zeroBytes(pw)
			if err := sess.AddEntry(ctx, entry); err != nil {
				return err
			}
			fmt.Println("added", entry.ID)
		case "show":
			if len(fields) != 2 {
				fmt.Fprintln(os.Stderr, "usage: show <id>")
				continue
			}
			entries, err := sess.Entries()
			if err != nil {
				return err
			}
			found := false
			for _, e := range entries {
				if e.ID == fields[1] {
					fmt.Printf("site: %s\nuser: %s\npass: %s\n", e.Site, e.Username, e.Password)
					found = true
					break
				}
			}
			if !found {
				fmt.Fprintln(os.Stderr, "not found")
			}
		case "remove":
			if len(fields) != 2 {
				fmt.Fprintln(os.Stderr, "usage: remove <id>")
				continue
			}
			if err := sess.RemoveEntry(ctx, fields[1]); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case "rotate-recovery":
			code, err := sess.RotateRecoveryCode(ctx)
			if err != nil {
				return err
			}
			fmt.Println("new recovery code (the old one no longer works):")
			fmt.Println("  " + code)
		case "change-master":
			oldPw, err := promptPassword("Current master password: ")
			if err != nil {
				return err
			}
			newPw, err := promptPassword("New master password: ")
			if err != nil {
				zeroBytes(oldPw)
				return err
			}
			err = sess.ChangeMasterPassword(ctx, string(oldPw), string(newPw))
			zeroBytes(oldPw)
			zeroBytes(newPw)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			fmt.Println("master password changed")
		case "lock", "quit", "exit":
			sess.Lock()
			fmt.Println("vault locked")
			return nil
		default:
			fmt.Fprintln(os.Stderr, "unknown command; type `help`")
		}
	}
}

func promptPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, err
	}
	return pw, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
