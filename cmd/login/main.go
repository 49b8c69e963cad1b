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

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/transport"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error running login: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	client, err := newAuthClient(c)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if client.IsSessionValid() || client.RefreshSession(ctx) {
		fmt.Printf("Already signed in as %s\n", displayNameOrFallback(ctx, client))
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	email := prompt(reader, "Email: ")
	password := prompt(reader, "Password: ")

	_, err = client.Login(ctx, email, password)
	if errors.Is(err, auth.MFARequiredErr) {
		code := prompt(reader, "MFA code: ")
		_, err = client.CompleteMFA(ctx, code)
	}
	if err != nil {
		return fmt.Errorf("client.Login: %w", err)
	}

	fmt.Printf("Signed in as %s\n", displayNameOrFallback(ctx, client))
	return nil
}

func newAuthClient(c config.Config) (*auth.Client, error) {
	store, err := sessions.NewFileStore(c.GetDataFolder())
	if err != nil {
		return nil, fmt.Errorf("sessions.NewFileStore: %w", err)
	}
	doer, err := transport.NewClient(c.GetHTTPTimeout(), c.GetUserAgent())
	if err != nil {
		return nil, fmt.Errorf("transport.NewClient: %w", err)
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	client, err := auth.New(c, auth.Collaborators{Transport: doer, Store: store}, auth.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("auth.New: %w", err)
	}
	return client, nil
}

func displayNameOrFallback(ctx context.Context, client *auth.Client) string {
	if name := client.DisplayName(ctx); name != "" {
		return name
	}
	return "unknown user"
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
