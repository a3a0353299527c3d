package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/cartomap/cartomap-client/authapi"
	"github.com/cartomap/cartomap-client/internal/config"
	"github.com/cartomap/cartomap-client/session"
	"github.com/cartomap/cartomap-client/tokenstore"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if c.GetEnv() != "DEV" {
		logger = logger.Level(zerolog.InfoLevel)
	}

	store, err := newStore(c)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}

	mgr := session.NewManager(c, store, session.WithLogger(logger))

	ctx, cancel := context.WithTimeout(context.Background(), c.GetRequestTimeout())
	defer cancel()
	mgr.Initialize(ctx)

	if len(args) == 0 {
		return command(ctx, mgr, "status")
	}
	return command(ctx, mgr, args[0])
}

func command(ctx context.Context, mgr *session.Manager, name string) error {
	switch name {
	case "login":
		creds, err := promptCredentials()
		if err != nil {
			return err
		}
		if err := mgr.Login(ctx, creds); err != nil {
			return err
		}
		fmt.Printf("Logged in as %s\n", mgr.CurrentUser().Username)
		return nil

	case "whoami":
		user := mgr.CurrentUser()
		if user == nil {
			return errors.New("not logged in")
		}
		fmt.Printf("%s <%s> role=%s active=%t\n", user.Username, user.Email, user.Role, user.IsActive)
		return nil

	case "logout":
		mgr.Logout()
		fmt.Println("Logged out")
		return nil

	case "status":
		snap := mgr.Snapshot()
		fmt.Printf("session: %s\n", snap.State)
		if snap.User != nil {
			fmt.Printf("user: %s\n", snap.User.Username)
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q (expected login, whoami, logout or status)", name)
	}
}

func promptCredentials() (authapi.Credentials, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Username: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		return authapi.Credentials{}, fmt.Errorf("read username: %w", err)
	}

	fmt.Print("Password: ")
	password, err := reader.ReadString('\n')
	if err != nil {
		return authapi.Credentials{}, fmt.Errorf("read password: %w", err)
	}

	return authapi.Credentials{
		Username: strings.TrimSpace(username),
		Password: strings.TrimSpace(password),
	}, nil
}

func newStore(c config.Config) (tokenstore.Store, error) {
	if key := c.GetTokenStoreKey(); key != nil {
		return tokenstore.NewEncryptedStore(c.GetTokenFilePath(), key)
	}
	return tokenstore.NewFileStore(c.GetTokenFilePath())
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
